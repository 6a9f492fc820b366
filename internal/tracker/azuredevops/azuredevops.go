// Package azuredevops implements the tracker adapter for Azure DevOps
// work items.
package azuredevops

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/loomworks/loom/internal/tracker"
	"github.com/loomworks/loom/internal/types"
)

const apiVersion = "7.0"

func init() {
	tracker.Register("azuredevops", func(cfg tracker.AdapterConfig) (tracker.Adapter, error) {
		return New(cfg)
	})
}

// Adapter talks to one Azure DevOps project's work items.
type Adapter struct {
	base   string // https://dev.azure.com/{organization}
	proj   string
	client *tracker.Client
	mapper *Mapper
}

// New creates an Azure DevOps adapter from injected configuration.
func New(cfg tracker.AdapterConfig) (*Adapter, error) {
	if cfg.Organization == "" || cfg.Project == "" {
		return nil, fmt.Errorf("azuredevops: organization and project are required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("azuredevops: PAT is required")
	}

	base := cfg.BaseURL
	if base == "" {
		base = "https://dev.azure.com/" + cfg.Organization
	}

	// Azure DevOps uses Basic auth with an empty username and the PAT as
	// the password.
	encoded := base64.StdEncoding.EncodeToString([]byte(":" + cfg.Token))
	client := tracker.NewClient(func(req *http.Request) {
		req.Header.Set("Authorization", "Basic "+encoded)
	})
	if cfg.Timeout > 0 {
		client.HTTPClient.Timeout = cfg.Timeout
	}

	return &Adapter{
		base:   strings.TrimRight(base, "/"),
		proj:   cfg.Project,
		client: client,
		mapper: NewMapper(cfg.StatusMap),
	}, nil
}

func (a *Adapter) Name() string                 { return "azuredevops" }
func (a *Adapter) DisplayName() string          { return "Azure DevOps" }
func (a *Adapter) Mapper() tracker.StatusMapper { return a.mapper }

func (a *Adapter) workItemURL(remoteID string) string {
	return fmt.Sprintf("%s/%s/_apis/wit/workitems/%s?api-version=%s",
		a.base, url.PathEscape(a.proj), remoteID, apiVersion)
}

// FetchRemoteStatus reads the work item's System.State field.
func (a *Adapter) FetchRemoteStatus(ctx context.Context, remoteID string) (*tracker.RemoteStatus, error) {
	var resp struct {
		Fields map[string]interface{} `json:"fields"`
	}
	if err := a.client.DoJSON(ctx, http.MethodGet, a.workItemURL(remoteID), nil, &resp); err != nil {
		return nil, err
	}

	state, _ := resp.Fields["System.State"].(string)
	return &tracker.RemoteStatus{
		Native:     tracker.NativeStatus{State: state},
		ObservedAt: time.Now().UTC(),
	}, nil
}

// ApplyStatus patches System.State via the json-patch document format the
// work item API requires.
func (a *Adapter) ApplyStatus(ctx context.Context, remoteID string, status types.Status) error {
	native := a.mapper.ToNative(status)
	patch := []map[string]interface{}{
		{"op": "add", "path": "/fields/System.State", "value": native.State},
	}
	return a.client.DoJSONPatch(ctx, http.MethodPatch, a.workItemURL(remoteID), patch, nil)
}

// PostAuditComment records the status change in the work item discussion.
func (a *Adapter) PostAuditComment(ctx context.Context, remoteID string, from, to types.Status) error {
	commentURL := fmt.Sprintf("%s/%s/_apis/wit/workItems/%s/comments?api-version=7.0-preview.3",
		a.base, url.PathEscape(a.proj), remoteID)
	body := map[string]string{
		"text": fmt.Sprintf("loom: status changed %s → %s", from, to),
	}
	return a.client.DoJSON(ctx, http.MethodPost, commentURL, body, nil)
}
