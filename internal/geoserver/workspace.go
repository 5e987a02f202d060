package geoserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/terrasync/terrasync/internal/config"
)

// EnsureWorkspace creates the configured workspace if it does not exist.
func (c *Client) EnsureWorkspace(ctx context.Context) error {
	present, err := c.exists(ctx, "/rest/workspaces/"+c.workspace)
	if err != nil {
		return fmt.Errorf("check workspace %s: %w", c.workspace, err)
	}
	if present {
		return nil
	}

	payload, err := json.Marshal(map[string]map[string]string{
		"workspace": {"name": c.workspace},
	})
	if err != nil {
		return err
	}
	res, err := c.do(ctx, http.MethodPost, "/rest/workspaces", "", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	if !res.ok() {
		return fmt.Errorf("create workspace %s: status %d: %s", c.workspace, res.Status, res.Body)
	}
	c.log.Info("workspace created", "workspace", c.workspace)
	return nil
}

// EnsureDatastore creates the configured PostGIS datastore inside the
// workspace if it does not exist, pointing it at the database the import
// pipeline writes to.
func (c *Client) EnsureDatastore(ctx context.Context, db config.DatabaseConfig) error {
	path := fmt.Sprintf("/rest/workspaces/%s/datastores/%s", c.workspace, c.datastore)
	present, err := c.exists(ctx, path)
	if err != nil {
		return fmt.Errorf("check datastore %s: %w", c.datastore, err)
	}
	if present {
		return nil
	}

	u, err := url.Parse(db.URL)
	if err != nil {
		return fmt.Errorf("parse database URL: %w", err)
	}
	password, _ := u.User.Password()
	port := u.Port()
	if port == "" {
		port = "5432"
	}

	body := map[string]any{
		"dataStore": map[string]any{
			"name": c.datastore,
			"connectionParameters": map[string]any{
				"entry": []map[string]string{
					{"@key": "host", "$": u.Hostname()},
					{"@key": "port", "$": port},
					{"@key": "database", "$": trimLeadingSlash(u.Path)},
					{"@key": "user", "$": u.User.Username()},
					{"@key": "passwd", "$": password},
					{"@key": "dbtype", "$": "postgis"},
				},
			},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	res, err := c.do(ctx, http.MethodPost,
		fmt.Sprintf("/rest/workspaces/%s/datastores", c.workspace), "", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	if !res.ok() {
		return fmt.Errorf("create datastore %s: status %d: %s", c.datastore, res.Status, res.Body)
	}
	c.log.Info("datastore created", "datastore", c.datastore)
	return nil
}

func trimLeadingSlash(p string) string {
	if len(p) > 0 && p[0] == '/' {
		return p[1:]
	}
	return p
}
