// Package github implements the tracker adapter for GitHub Issues.
package github

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/loomworks/loom/internal/tracker"
	"github.com/loomworks/loom/internal/types"
)

// DefaultAPIEndpoint is the GitHub REST API base URL.
const DefaultAPIEndpoint = "https://api.github.com"

func init() {
	tracker.Register("github", func(cfg tracker.AdapterConfig) (tracker.Adapter, error) {
		return New(cfg)
	})
}

// Adapter talks to one GitHub repository's issues.
type Adapter struct {
	owner  string
	repo   string
	base   string
	client *tracker.Client
	mapper *Mapper
}

// New creates a GitHub adapter from injected configuration.
func New(cfg tracker.AdapterConfig) (*Adapter, error) {
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, fmt.Errorf("github: owner and repo are required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("github: token is required")
	}

	base := cfg.BaseURL
	if base == "" {
		base = DefaultAPIEndpoint
	}

	token := cfg.Token
	client := tracker.NewClient(func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	})
	if cfg.Timeout > 0 {
		client.HTTPClient.Timeout = cfg.Timeout
	}

	return &Adapter{
		owner:  cfg.Owner,
		repo:   cfg.Repo,
		base:   base,
		client: client,
		mapper: NewMapper(cfg.StatusMap),
	}, nil
}

func (a *Adapter) Name() string                 { return "github" }
func (a *Adapter) DisplayName() string          { return "GitHub" }
func (a *Adapter) Mapper() tracker.StatusMapper { return a.mapper }

func (a *Adapter) issueURL(remoteID string) string {
	return fmt.Sprintf("%s/repos/%s/%s/issues/%s", a.base, a.owner, a.repo, remoteID)
}

// issue is the subset of the GitHub issue payload the adapter reads.
type issue struct {
	Number int    `json:"number"`
	State  string `json:"state"`
	Labels []struct {
		Name string `json:"name"`
	} `json:"labels"`
}

func (i *issue) labelNames() []string {
	names := make([]string, 0, len(i.Labels))
	for _, l := range i.Labels {
		names = append(names, l.Name)
	}
	return names
}

// FetchRemoteStatus reads the issue's state and labels.
func (a *Adapter) FetchRemoteStatus(ctx context.Context, remoteID string) (*tracker.RemoteStatus, error) {
	var gh issue
	if err := a.client.DoJSON(ctx, http.MethodGet, a.issueURL(remoteID), nil, &gh); err != nil {
		return nil, err
	}
	return &tracker.RemoteStatus{
		Native:     tracker.NativeStatus{State: gh.State, Labels: gh.labelNames()},
		ObservedAt: time.Now().UTC(),
	}, nil
}

// ApplyStatus writes the status to the issue: state plus status labels,
// preserving every unrelated label already on the issue.
func (a *Adapter) ApplyStatus(ctx context.Context, remoteID string, status types.Status) error {
	native := a.mapper.ToNative(status)

	var current issue
	if err := a.client.DoJSON(ctx, http.MethodGet, a.issueURL(remoteID), nil, &current); err != nil {
		return err
	}

	update := map[string]interface{}{
		"state":  native.State,
		"labels": mergeStatusLabels(current.labelNames(), native),
	}
	return a.client.DoJSON(ctx, http.MethodPatch, a.issueURL(remoteID), update, nil)
}

// PostAuditComment leaves a comment recording the status change.
func (a *Adapter) PostAuditComment(ctx context.Context, remoteID string, from, to types.Status) error {
	body := map[string]string{
		"body": fmt.Sprintf("loom: status changed `%s` → `%s`", from, to),
	}
	return a.client.DoJSON(ctx, http.MethodPost, a.issueURL(remoteID)+"/comments", body, nil)
}
