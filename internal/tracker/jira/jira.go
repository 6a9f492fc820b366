// Package jira implements the tracker adapter for Jira issues.
package jira

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/loomworks/loom/internal/tracker"
	"github.com/loomworks/loom/internal/types"
)

func init() {
	tracker.Register("jira", func(cfg tracker.AdapterConfig) (tracker.Adapter, error) {
		return New(cfg)
	})
}

// Adapter talks to one Jira site. Status changes go through the workflow
// transitions API: Jira never lets a client set a status directly.
type Adapter struct {
	base   string
	client *tracker.Client
	mapper *Mapper
}

// New creates a Jira adapter from injected configuration. With an
// Organization (account email) set, auth is Basic email:token (Jira Cloud);
// without one the token is sent as a Bearer PAT (Jira Server/DC).
func New(cfg tracker.AdapterConfig) (*Adapter, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("jira: base URL is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("jira: API token is required")
	}

	authorize := func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
	}
	if cfg.Organization != "" {
		encoded := base64.StdEncoding.EncodeToString([]byte(cfg.Organization + ":" + cfg.Token))
		authorize = func(req *http.Request) {
			req.Header.Set("Authorization", "Basic "+encoded)
		}
	}

	client := tracker.NewClient(authorize)
	if cfg.Timeout > 0 {
		client.HTTPClient.Timeout = cfg.Timeout
	}

	return &Adapter{
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		client: client,
		mapper: NewMapper(cfg.StatusMap),
	}, nil
}

func (a *Adapter) Name() string                 { return "jira" }
func (a *Adapter) DisplayName() string          { return "Jira" }
func (a *Adapter) Mapper() tracker.StatusMapper { return a.mapper }

func (a *Adapter) issueURL(key, suffix string) string {
	return a.base + "/rest/api/2/issue/" + key + suffix
}

// FetchRemoteStatus reads the issue's workflow status name.
func (a *Adapter) FetchRemoteStatus(ctx context.Context, remoteID string) (*tracker.RemoteStatus, error) {
	var resp struct {
		Fields struct {
			Status struct {
				Name string `json:"name"`
			} `json:"status"`
		} `json:"fields"`
	}
	if err := a.client.DoJSON(ctx, http.MethodGet, a.issueURL(remoteID, "?fields=status"), nil, &resp); err != nil {
		return nil, err
	}
	return &tracker.RemoteStatus{
		Native:     tracker.NativeStatus{State: resp.Fields.Status.Name},
		ObservedAt: time.Now().UTC(),
	}, nil
}

// ApplyStatus moves the issue to the workflow state for the status, via the
// transition whose target matches. Workflows a project has locked down may
// not offer a usable transition; that is surfaced, not worked around.
func (a *Adapter) ApplyStatus(ctx context.Context, remoteID string, status types.Status) error {
	target := a.mapper.ToNative(status).State

	var resp struct {
		Transitions []struct {
			ID string `json:"id"`
			To struct {
				Name string `json:"name"`
			} `json:"to"`
		} `json:"transitions"`
	}
	if err := a.client.DoJSON(ctx, http.MethodGet, a.issueURL(remoteID, "/transitions"), nil, &resp); err != nil {
		return err
	}

	for _, transition := range resp.Transitions {
		if strings.EqualFold(transition.To.Name, target) {
			body := map[string]interface{}{
				"transition": map[string]string{"id": transition.ID},
			}
			return a.client.DoJSON(ctx, http.MethodPost, a.issueURL(remoteID, "/transitions"), body, nil)
		}
	}
	return fmt.Errorf("jira: no transition to %q available for %s", target, remoteID)
}

// PostAuditComment leaves a comment recording the status change.
func (a *Adapter) PostAuditComment(ctx context.Context, remoteID string, from, to types.Status) error {
	body := map[string]string{
		"body": fmt.Sprintf("loom: status changed %s → %s", from, to),
	}
	return a.client.DoJSON(ctx, http.MethodPost, a.issueURL(remoteID, "/comment"), body, nil)
}
