package geoserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

type featureTypeBody struct {
	FeatureType struct {
		Name       string `json:"name"`
		NativeName string `json:"nativeName"`
		Title      string `json:"title"`
		SRS        string `json:"srs"`
		Enabled    bool   `json:"enabled"`
	} `json:"featureType"`
}

type featureTypeList struct {
	FeatureTypes struct {
		FeatureType []struct {
			Name string `json:"name"`
		} `json:"featureType"`
	} `json:"featureTypes"`
}

func (c *Client) featureTypePath(name string) string {
	return fmt.Sprintf("/rest/workspaces/%s/datastores/%s/featuretypes/%s",
		c.workspace, c.datastore, name)
}

// PublishFeatureType exposes a spatial table as a served vector layer with
// create-or-replace semantics: the server rejects duplicate names, so any
// existing resource is deleted first, then the feature type is created against
// the configured PostGIS datastore.
func (c *Client) PublishFeatureType(ctx context.Context, table string) error {
	present, err := c.exists(ctx, c.featureTypePath(table))
	if err != nil {
		return fmt.Errorf("check feature type %s: %w", table, err)
	}
	if present {
		c.log.Info("replacing existing feature type", "layer", table)
		if err := c.DeleteVectorLayer(ctx, table); err != nil {
			return fmt.Errorf("remove stale feature type %s: %w", table, err)
		}
	}

	var body featureTypeBody
	body.FeatureType.Name = table
	body.FeatureType.NativeName = table
	body.FeatureType.Title = table
	body.FeatureType.SRS = "EPSG:4326"
	body.FeatureType.Enabled = true

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode feature type %s: %w", table, err)
	}

	path := fmt.Sprintf("/rest/workspaces/%s/datastores/%s/featuretypes", c.workspace, c.datastore)
	res, err := c.do(ctx, http.MethodPost, path, "", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	if !res.ok() {
		return &PublishError{Layer: table, Status: res.Status, Body: string(res.Body)}
	}

	c.verifyFeatureType(ctx, table)

	if err := c.ConfigureTileCache(ctx, table); err != nil {
		c.log.Warn("tile cache configuration failed", "layer", table, "error", err)
	}
	return nil
}

// verifyFeatureType lists the datastore's feature types and checks the new
// name appears. Listings can lag behind creation, so absence is only a
// warning.
func (c *Client) verifyFeatureType(ctx context.Context, table string) {
	path := fmt.Sprintf("/rest/workspaces/%s/datastores/%s/featuretypes", c.workspace, c.datastore)
	res, err := c.doRetry(ctx, http.MethodGet, path)
	if err != nil || !res.ok() {
		c.log.Warn("could not verify published feature type", "layer", table, "error", err)
		return
	}

	var list featureTypeList
	if err := json.Unmarshal(res.Body, &list); err != nil {
		c.log.Warn("could not decode feature type listing", "layer", table, "error", err)
		return
	}
	for _, ft := range list.FeatureTypes.FeatureType {
		if ft.Name == table {
			return
		}
	}
	c.log.Warn("published feature type absent from listing", "layer", table)
}

// DeleteVectorLayer removes a vector layer's served resources: the tile cache
// entry, the layer, then the feature type. Each step tolerates the resource
// being already absent.
func (c *Client) DeleteVectorLayer(ctx context.Context, name string) error {
	if err := c.deleteIfPresent(ctx, fmt.Sprintf("/gwc/rest/layers/%s:%s", c.workspace, name)); err != nil {
		c.log.Warn("tile cache entry removal failed", "layer", name, "error", err)
	}
	if err := c.deleteIfPresent(ctx, fmt.Sprintf("/rest/layers/%s:%s", c.workspace, name)); err != nil {
		c.log.Warn("layer removal failed", "layer", name, "error", err)
	}
	if err := c.deleteIfPresent(ctx, c.featureTypePath(name)+"?recurse=true"); err != nil {
		return fmt.Errorf("delete feature type %s: %w", name, err)
	}
	return nil
}
