package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/internal/types"
)

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyPromptUser, s, "no configured strategy defaults to prompt-user")

	for _, valid := range []string{"local-wins", "remote-wins", "prompt-user"} {
		s, err := ParseStrategy(valid)
		require.NoError(t, err)
		assert.Equal(t, Strategy(valid), s)
	}

	_, err = ParseStrategy("newest-wins")
	assert.Error(t, err)
}

func TestDetectNeverFiresWithoutBaseline(t *testing.T) {
	// First sync: no prior baseline, no conflict, no matter how far apart.
	link := &types.TrackerLink{Name: "github", RemoteID: "7"}
	assert.False(t, Detect(link, types.StatusActive, types.StatusCompleted))
	assert.False(t, Detect(nil, types.StatusActive, types.StatusCompleted))
}

func TestDetectIsDeterministic(t *testing.T) {
	at := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	link := &types.TrackerLink{Name: "jira", RemoteID: "PROJ-9", LastSyncedAt: &at}

	for i := 0; i < 5; i++ {
		assert.True(t, Detect(link, types.StatusActive, types.StatusCompleted))
		assert.False(t, Detect(link, types.StatusActive, types.StatusActive),
			"same generic status is never a conflict, regardless of surface form")
	}
}

func TestResolveLocalWins(t *testing.T) {
	conflict := Conflict{
		IncrementID: "0030-cache",
		Local:       types.StatusActive,
		Remote:      types.StatusCompleted,
		Tracker:     "github",
	}

	// local-wins must ignore the remote value entirely.
	for _, remote := range []types.Status{types.StatusCompleted, types.StatusAbandoned, types.StatusBacklog} {
		conflict.Remote = remote
		resolution, err := Resolve(conflict, StrategyLocalWins)
		require.NoError(t, err)
		assert.Equal(t, types.StatusActive, resolution.Status)
		assert.Equal(t, ActionPushRemote, resolution.Action)
		assert.Nil(t, resolution.Pending)
	}
}

func TestResolveRemoteWins(t *testing.T) {
	conflict := Conflict{
		IncrementID: "0031-etl",
		Local:       types.StatusActive,
		Remote:      types.StatusCompleted,
		Tracker:     "azuredevops",
	}
	resolution, err := Resolve(conflict, StrategyRemoteWins)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, resolution.Status)
	assert.Equal(t, ActionWriteLocal, resolution.Action)
}

func TestResolvePromptUserSuspends(t *testing.T) {
	conflict := Conflict{
		IncrementID: "0032-api",
		Local:       types.StatusCompleted,
		Remote:      types.StatusActive,
		Tracker:     "jira",
	}
	resolution, err := Resolve(conflict, StrategyPromptUser)
	require.NoError(t, err)
	assert.Equal(t, ActionAwaitDecision, resolution.Action)
	require.NotNil(t, resolution.Pending)
	assert.NotEmpty(t, resolution.Pending.Token)
	assert.Empty(t, resolution.Status, "resolver must never guess")

	// The caller supplies the decision later; only then is there an outcome.
	local, err := ResolvePending(resolution.Pending, DecisionKeepLocal)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, local.Status)
	assert.Equal(t, ActionPushRemote, local.Action)

	remote, err := ResolvePending(resolution.Pending, DecisionKeepRemote)
	require.NoError(t, err)
	assert.Equal(t, types.StatusActive, remote.Status)
	assert.Equal(t, ActionWriteLocal, remote.Action)

	_, err = ResolvePending(resolution.Pending, "merge")
	assert.Error(t, err)
}
