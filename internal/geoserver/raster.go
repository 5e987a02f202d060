package geoserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// PublishRaster uploads a finished GeoTIFF through the single-call store
// endpoint: the server creates the coverage store and its coverage together,
// which is simpler and more failure-tolerant than creating them separately.
// Any existing store under the same name is removed first.
func (c *Client) PublishRaster(ctx context.Context, name, path string) error {
	if err := c.DeleteCoverageStore(ctx, name); err != nil {
		c.log.Warn("stale coverage store removal failed", "layer", name, "error", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open raster %s: %w", path, err)
	}
	defer f.Close()

	put := fmt.Sprintf("/rest/workspaces/%s/coveragestores/%s/file.geotiff?configure=first&coverageName=%s",
		c.workspace, name, name)
	res, err := c.do(ctx, http.MethodPut, put, "image/tiff", f)
	if err != nil {
		return err
	}
	if !res.ok() {
		return &PublishError{Layer: name, Status: res.Status, Body: string(res.Body)}
	}

	if err := c.ConfigureTileCache(ctx, name); err != nil {
		c.log.Warn("tile cache configuration failed", "layer", name, "error", err)
	}
	return nil
}

// DeleteCoverageStore removes a coverage store and everything under it.
// Absent stores are not an error.
func (c *Client) DeleteCoverageStore(ctx context.Context, name string) error {
	path := fmt.Sprintf("/rest/workspaces/%s/coveragestores/%s?recurse=true&purge=all", c.workspace, name)
	return c.deleteIfPresent(ctx, path)
}

// CoverageStoreExists probes the store listing for a candidate name.
func (c *Client) CoverageStoreExists(ctx context.Context, name string) (bool, error) {
	return c.exists(ctx, fmt.Sprintf("/rest/workspaces/%s/coveragestores/%s", c.workspace, name))
}

// ConfigureTileCache binds a published layer to the embedded tile cache with
// PNG output on the geographic and web-Mercator grids.
func (c *Client) ConfigureTileCache(ctx context.Context, name string) error {
	qualified := c.workspace + ":" + name
	body := fmt.Sprintf(`<GeoServerLayer>
  <name>%s</name>
  <enabled>true</enabled>
  <mimeFormats>
    <string>image/png</string>
  </mimeFormats>
  <gridSubsets>
    <gridSubset><gridSetName>EPSG:4326</gridSetName></gridSubset>
    <gridSubset><gridSetName>EPSG:900913</gridSetName></gridSubset>
  </gridSubsets>
</GeoServerLayer>`, qualified)

	res, err := c.do(ctx, http.MethodPut, "/gwc/rest/layers/"+qualified, "application/xml", strings.NewReader(body))
	if err != nil {
		return err
	}
	if !res.ok() {
		return fmt.Errorf("configure tile cache for %s: status %d: %s", qualified, res.Status, res.Body)
	}
	return nil
}

// ListLayerNames returns the bare names of every layer in the instance.
func (c *Client) ListLayerNames(ctx context.Context) ([]string, error) {
	res, err := c.doRetry(ctx, http.MethodGet, "/rest/layers")
	if err != nil {
		return nil, err
	}
	if !res.ok() {
		return nil, fmt.Errorf("list layers: status %d", res.Status)
	}

	var list struct {
		Layers struct {
			Layer []struct {
				Name string `json:"name"`
			} `json:"layer"`
		} `json:"layers"`
	}
	if err := json.Unmarshal(res.Body, &list); err != nil {
		return nil, fmt.Errorf("decode layer listing: %w", err)
	}

	names := make([]string, 0, len(list.Layers.Layer))
	for _, l := range list.Layers.Layer {
		// Qualified names come back as workspace:layer.
		if i := strings.IndexByte(l.Name, ':'); i >= 0 {
			names = append(names, l.Name[i+1:])
			continue
		}
		names = append(names, l.Name)
	}
	return names, nil
}

// TMSURL renders the tile-service template for a cached raster layer.
func (c *Client) TMSURL(name string) string {
	return fmt.Sprintf("%s/gwc/service/tms/1.0.0/%s:%s@EPSG:4326@png/{z}/{x}/{-y}.png",
		c.baseURL, c.workspace, name)
}

// WMSURL renders the WMS endpoint for a published layer.
func (c *Client) WMSURL(name string) string {
	return fmt.Sprintf("%s/%s/wms?service=WMS&version=1.1.0&request=GetMap&layers=%s:%s",
		c.baseURL, c.workspace, c.workspace, name)
}

// VectorTileURL renders the WMS-as-vector-tile template for a vector layer.
func (c *Client) VectorTileURL(name string) string {
	return fmt.Sprintf("%s/%s/ows?service=WMS&version=1.1.0&request=GetMap&layers=%s:%s&format=application/vnd.mapbox-vector-tile&tiled=true",
		c.baseURL, c.workspace, c.workspace, name)
}
