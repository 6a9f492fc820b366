package azuredevops

import (
	"testing"

	"github.com/loomworks/loom/internal/tracker"
	"github.com/loomworks/loom/internal/types"
)

var allStatuses = []types.Status{
	types.StatusPlanning,
	types.StatusActive,
	types.StatusBacklog,
	types.StatusPaused,
	types.StatusCompleted,
	types.StatusAbandoned,
}

func TestForwardMappingIsTotalAndRoundTrips(t *testing.T) {
	m := NewMapper(nil)
	for _, status := range allStatuses {
		native := m.ToNative(status)
		if native.State == "" {
			t.Errorf("ToNative(%s) has no work item state", status)
		}
		if got := m.FromNative(native); got != status {
			t.Errorf("round trip %s → %q → %s", status, native.State, got)
		}
	}
}

func TestFromNativeFoldsProcessTemplateStates(t *testing.T) {
	m := NewMapper(nil)
	tests := []struct {
		state string
		want  types.Status
	}{
		{"New", types.StatusPlanning},
		{"Approved", types.StatusBacklog},
		{"Committed", types.StatusActive},
		{"Doing", types.StatusActive},
		{"Resolved", types.StatusCompleted},
		{"CLOSED", types.StatusCompleted},
		{"Cut", types.StatusAbandoned},
		{" Removed ", types.StatusAbandoned},
		{"Design", types.StatusUnknown},
		{"", types.StatusUnknown},
	}
	for _, tt := range tests {
		if got := m.FromNative(tracker.NativeStatus{State: tt.state}); got != tt.want {
			t.Errorf("FromNative(%q) = %s, want %s", tt.state, got, tt.want)
		}
	}
}

func TestFromNativeNeverPanicsOnGarbage(t *testing.T) {
	m := NewMapper(nil)
	for _, state := range []string{"", "Active\x00", "système", "-1", "∞"} {
		got := m.FromNative(tracker.NativeStatus{State: state})
		if got != types.StatusUnknown && !got.IsValid() {
			t.Errorf("FromNative(%q) = %q, not unknown or valid", state, got)
		}
	}
}

func TestOverridesForCustomProcess(t *testing.T) {
	m := NewMapper(map[string]string{
		"design":  "planning",
		"testing": "active",
		"bogus":   "not-a-status",
	})
	if got := m.FromNative(tracker.NativeStatus{State: "Design"}); got != types.StatusPlanning {
		t.Errorf("override ignored: %s", got)
	}
	if got := m.FromNative(tracker.NativeStatus{State: "Testing"}); got != types.StatusActive {
		t.Errorf("override ignored: %s", got)
	}
	if got := m.FromNative(tracker.NativeStatus{State: "bogus"}); got != types.StatusUnknown {
		t.Errorf("invalid override installed: %s", got)
	}
}
