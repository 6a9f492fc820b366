package github

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
		if native.State != stateOpen && native.State != stateClosed {
			t.Errorf("ToNative(%s).State = %q, not a GitHub state", status, native.State)
		}
		if got := m.FromNative(native); got != status {
			t.Errorf("round trip %s → %+v → %s", status, native, got)
		}
	}
}

func TestFromNative(t *testing.T) {
	m := NewMapper(nil)
	tests := []struct {
		name   string
		native tracker.NativeStatus
		want   types.Status
	}{
		{"closed wins over labels", tracker.NativeStatus{State: "closed", Labels: []string{"status:active"}}, types.StatusCompleted},
		{"closed abandoned", tracker.NativeStatus{State: "closed", Labels: []string{"bug", "Status:Abandoned"}}, types.StatusAbandoned},
		{"open with paused label", tracker.NativeStatus{State: "open", Labels: []string{"docs", "status:paused"}}, types.StatusPaused},
		{"open without status label", tracker.NativeStatus{State: "open", Labels: []string{"bug"}}, types.StatusActive},
		{"label casing ignored", tracker.NativeStatus{State: "OPEN", Labels: []string{"STATUS:BACKLOG"}}, types.StatusBacklog},
		{"unrecognized state", tracker.NativeStatus{State: "locked"}, types.StatusUnknown},
		{"empty state", tracker.NativeStatus{}, types.StatusUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.FromNative(tt.native); got != tt.want {
				t.Errorf("FromNative(%+v) = %s, want %s", tt.native, got, tt.want)
			}
		})
	}
}

func TestFromNativeNeverPanicsOnGarbage(t *testing.T) {
	m := NewMapper(nil)
	for _, state := range []string{"", "deleted", "OPEN\x00", "état-bizarre", "42"} {
		got := m.FromNative(tracker.NativeStatus{State: state, Labels: []string{state}})
		if got != types.StatusUnknown && !got.IsValid() {
			t.Errorf("FromNative(%q) = %q, not unknown or valid", state, got)
		}
	}
}

func TestOverrides(t *testing.T) {
	m := NewMapper(map[string]string{
		"locked":  "abandoned",
		"garbage": "not-a-status", // invalid target must be dropped
	})
	if got := m.FromNative(tracker.NativeStatus{State: "Locked"}); got != types.StatusAbandoned {
		t.Errorf("override not applied: %s", got)
	}
	if got := m.FromNative(tracker.NativeStatus{State: "garbage"}); got != types.StatusUnknown {
		t.Errorf("invalid override installed: %s", got)
	}
}

func TestMergeStatusLabels(t *testing.T) {
	existing := []string{"bug", "status:active", "team/infra", "Status:Paused"}
	native := tracker.NativeStatus{State: stateOpen, Labels: []string{"status:backlog"}}
	got := mergeStatusLabels(existing, native)

	want := []string{"bug", "team/infra", "status:backlog"}
	if len(got) != len(want) {
		t.Fatalf("merged = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("merged = %v, want %v", got, want)
		}
	}
}
