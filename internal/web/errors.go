package web

// errors.go provides unified error response handling for the API.
//
// The error flow:
//  1. Handler encounters an error from the pipeline
//  2. Calls respondError(w, r, err)
//  3. The error is mapped to a user-facing message, action and code
//  4. The technical error is logged with the request ID for correlation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/terrasync/terrasync/internal/gdal"
	"github.com/terrasync/terrasync/internal/geoserver"
	"github.com/terrasync/terrasync/internal/mask"
	"github.com/terrasync/terrasync/internal/pipeline"
	"github.com/terrasync/terrasync/internal/shapefile"
)

// UserMessage is the user-facing rendering of an error.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// ErrorResponse is the JSON structure for API error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again; quote the request ID if the problem persists",
	Code:    "ERR000",
}

// mapError translates a pipeline error into a user message and HTTP status.
func mapError(err error) (UserMessage, int) {
	var (
		valErr  *pipeline.ValidationError
		delErr  *pipeline.DeletionError
		impErr  *gdal.ImportError
		tmoErr  *gdal.TimeoutError
		pubErr  *geoserver.PublishError
		maskErr *mask.GenerationError
	)

	switch {
	case errors.As(err, &valErr):
		return UserMessage{
			Message: valErr.Reason,
			Action:  "Correct the upload and try again",
			Code:    "VAL001",
		}, http.StatusBadRequest

	case errors.Is(err, shapefile.ErrNoShapefile):
		return UserMessage{
			Message: "The archive contains no shapefile",
			Action:  "Zip the .shp, .dbf, .shx and .prj files together and re-upload",
			Code:    "VAL002",
		}, http.StatusBadRequest

	// The pipeline budget can expire between tool invocations, in which
	// case no tool wraps the deadline error for us.
	case errors.As(err, &tmoErr), errors.Is(err, context.DeadlineExceeded):
		return UserMessage{
			Message: "Processing took too long and was aborted",
			Action:  "Try a smaller dataset or try again later",
			Code:    "TMO001",
		}, http.StatusGatewayTimeout

	case errors.As(err, &impErr):
		return UserMessage{
			Message: "The dataset could not be loaded into the spatial database",
			Action:  "Check the shapefile's geometry and projection, then re-upload",
			Code:    "IMP001",
		}, http.StatusInternalServerError

	case errors.As(err, &pubErr):
		return UserMessage{
			Message: "The tile server rejected the layer",
			Action:  "Try again; if it persists the tile server may be misconfigured",
			Code:    "PUB001",
		}, http.StatusBadGateway

	case errors.As(err, &maskErr):
		return UserMessage{
			Message: "Mask generation failed",
			Action:  "The boundary layer is still available; re-upload to retry the mask",
			Code:    "MSK001",
		}, http.StatusInternalServerError

	case errors.As(err, &delErr):
		return UserMessage{
			Message: "No layer with that name was found in any store",
			Action:  "Check the layer name; it may already be deleted",
			Code:    "DEL001",
		}, http.StatusNotFound

	case errors.Is(err, pipeline.ErrBusy):
		return UserMessage{
			Message: "Too many uploads are in progress",
			Action:  "Wait a moment and try again",
			Code:    "RATE001",
		}, http.StatusTooManyRequests
	}

	return defaultMessage, http.StatusInternalServerError
}

// respondError logs the technical error and writes the mapped user message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	userMsg, status := mapError(err)
	requestID := middleware.GetReqID(r.Context())

	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", requestID,
	)

	respondErrorJSON(w, userMsg, status)
}

func respondErrorJSON(w http.ResponseWriter, msg UserMessage, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
