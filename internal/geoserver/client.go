// Package geoserver is a REST client for the tile server: workspaces,
// PostGIS feature types, raster coverages and the embedded tile cache.
package geoserver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/terrasync/terrasync/internal/config"
)

// PublishError reports a rejected create/replace call, carrying the server's
// response body for diagnosis.
type PublishError struct {
	Layer  string
	Status int
	Body   string
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("tile server rejected layer %q: status %d: %s", e.Layer, e.Status, e.Body)
}

// Client talks to a single GeoServer instance using basic auth.
type Client struct {
	baseURL   string
	user      string
	password  string
	workspace string
	datastore string
	http      *http.Client
	log       *slog.Logger
}

// NewClient builds a client from configuration. The base URL must include the
// /geoserver path prefix.
func NewClient(cfg config.GeoServerConfig, log *slog.Logger) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.URL, "/"),
		user:      cfg.User,
		password:  cfg.Password,
		workspace: cfg.Workspace,
		datastore: cfg.Datastore,
		http:      &http.Client{Timeout: cfg.Timeout},
		log:       log,
	}
}

// Workspace returns the default workspace layers are published into.
func (c *Client) Workspace() string { return c.workspace }

// response is the decoded outcome of a single REST call.
type response struct {
	Status int
	Body   []byte
}

func (r response) ok() bool { return r.Status >= 200 && r.Status < 300 }

// do performs one REST call. Content type defaults to JSON unless overridden.
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) (response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return response{}, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.SetBasicAuth(c.user, c.password)
	if contentType == "" {
		contentType = "application/json"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return response{}, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	return response{Status: res.StatusCode, Body: data}, nil
}

// doRetry wraps do with exponential backoff for idempotent calls (GET and
// DELETE). Transport errors and 5xx responses are retried; anything else is
// returned as-is.
func (c *Client) doRetry(ctx context.Context, method, path string) (response, error) {
	var out response

	op := func() error {
		res, err := c.do(ctx, method, path, "", nil)
		if err != nil {
			return err
		}
		if res.Status >= 500 {
			return fmt.Errorf("%s %s: server error %d", method, path, res.Status)
		}
		out = res
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = 15 * time.Second

	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return response{}, err
	}
	return out, nil
}

// exists maps a retried GET to a presence check. 404 is a definitive "no".
func (c *Client) exists(ctx context.Context, path string) (bool, error) {
	res, err := c.doRetry(ctx, http.MethodGet, path)
	if err != nil {
		return false, err
	}
	if res.Status == http.StatusNotFound {
		return false, nil
	}
	if !res.ok() {
		return false, fmt.Errorf("GET %s: unexpected status %d", path, res.Status)
	}
	return true, nil
}

// deleteIfPresent issues a retried DELETE, treating 404 as success so delete
// paths stay idempotent.
func (c *Client) deleteIfPresent(ctx context.Context, path string) error {
	res, err := c.doRetry(ctx, http.MethodDelete, path)
	if err != nil {
		return err
	}
	if res.Status == http.StatusNotFound || res.ok() {
		return nil
	}
	return fmt.Errorf("DELETE %s: unexpected status %d: %s", path, res.Status, res.Body)
}
