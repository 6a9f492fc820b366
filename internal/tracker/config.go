package tracker

import (
	"time"
)

// AdapterConfig is the explicit configuration injected into a tracker
// adapter at construction time. Adapters never reach for ambient project
// config; everything they need arrives here.
type AdapterConfig struct {
	// Token is the API token or PAT for the tracker.
	Token string

	// BaseURL overrides the API endpoint (cloud default when empty).
	// Also used to point adapters at test servers.
	BaseURL string

	// Timeout bounds a single API request. Zero uses DefaultTimeout.
	Timeout time.Duration

	// Owner and Repo identify a GitHub repository.
	Owner string
	Repo  string

	// Organization and Project identify a Jira or Azure DevOps project.
	Organization string
	Project      string

	// StatusMap overrides entries of the adapter's reverse mapping:
	// lowercase native state name to generic status string. Lets projects
	// teach an adapter about custom workflow states.
	StatusMap map[string]string
}
