package github

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/loomworks/loom/internal/tracker"
	"github.com/loomworks/loom/internal/types"
)

func newTestAdapter(t *testing.T, handler http.Handler) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	a, err := New(tracker.AdapterConfig{
		Owner:   "loomworks",
		Repo:    "loom",
		Token:   "tok-test",
		BaseURL: srv.URL,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a.client.MaxElapsed = 2 * time.Second
	return a
}

func TestNewRequiresConfig(t *testing.T) {
	if _, err := New(tracker.AdapterConfig{Repo: "loom", Token: "t"}); err == nil {
		t.Error("missing owner accepted")
	}
	if _, err := New(tracker.AdapterConfig{Owner: "o", Repo: "r"}); err == nil {
		t.Error("missing token accepted")
	}
}

func TestFetchRemoteStatus(t *testing.T) {
	var gotAuth, gotAccept string
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		if r.URL.Path != "/repos/loomworks/loom/issues/42" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"number": 42,
			"state":  "open",
			"labels": []map[string]string{{"name": "bug"}, {"name": "status:paused"}},
		})
	}))

	remote, err := a.FetchRemoteStatus(context.Background(), "42")
	if err != nil {
		t.Fatalf("FetchRemoteStatus: %v", err)
	}
	if gotAuth != "Bearer tok-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotAccept != "application/vnd.github+json" {
		t.Errorf("Accept = %q", gotAccept)
	}
	if remote.Native.State != "open" {
		t.Errorf("state = %q", remote.Native.State)
	}
	if got := a.mapper.FromNative(remote.Native); got != types.StatusPaused {
		t.Errorf("mapped status = %s", got)
	}
	if remote.ObservedAt.IsZero() {
		t.Error("ObservedAt not set")
	}
}

func TestFetchNotFoundIsPermanent(t *testing.T) {
	calls := 0
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	}))

	_, err := a.FetchRemoteStatus(context.Background(), "999")
	if !errors.Is(err, tracker.ErrRemoteNotFound) {
		t.Fatalf("err = %v, want ErrRemoteNotFound", err)
	}
	if calls != 1 {
		t.Errorf("404 was retried %d times", calls)
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	calls := 0
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "oops", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"number": 1, "state": "closed"})
	}))

	remote, err := a.FetchRemoteStatus(context.Background(), "1")
	if err != nil {
		t.Fatalf("FetchRemoteStatus after retry: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if remote.Native.State != "closed" {
		t.Errorf("state = %q", remote.Native.State)
	}
}

func TestFetchAuthFailureNotRetried(t *testing.T) {
	calls := 0
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"message":"Bad credentials"}`, http.StatusUnauthorized)
	}))

	_, err := a.FetchRemoteStatus(context.Background(), "1")
	var httpErr *tracker.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("err = %v, want 401 HTTPError", err)
	}
	if calls != 1 {
		t.Errorf("401 was retried %d times", calls)
	}
}

func TestApplyStatusPreservesUnrelatedLabels(t *testing.T) {
	var patched map[string]interface{}
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(map[string]interface{}{
				"number": 7,
				"state":  "open",
				"labels": []map[string]string{{"name": "bug"}, {"name": "status:active"}},
			})
		case http.MethodPatch:
			if err := json.NewDecoder(r.Body).Decode(&patched); err != nil {
				t.Errorf("decode patch: %v", err)
			}
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))

	if err := a.ApplyStatus(context.Background(), "7", types.StatusPaused); err != nil {
		t.Fatalf("ApplyStatus: %v", err)
	}
	if patched["state"] != "open" {
		t.Errorf("state = %v", patched["state"])
	}
	labels, _ := patched["labels"].([]interface{})
	want := []string{"bug", "status:paused"}
	if len(labels) != len(want) {
		t.Fatalf("labels = %v, want %v", labels, want)
	}
	for i, l := range labels {
		if l != want[i] {
			t.Fatalf("labels = %v, want %v", labels, want)
		}
	}
}

func TestApplyCompletedClosesIssue(t *testing.T) {
	var patched map[string]interface{}
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			json.NewEncoder(w).Encode(map[string]interface{}{"number": 8, "state": "open"})
			return
		}
		json.NewDecoder(r.Body).Decode(&patched)
	}))

	if err := a.ApplyStatus(context.Background(), "8", types.StatusCompleted); err != nil {
		t.Fatalf("ApplyStatus: %v", err)
	}
	if patched["state"] != "closed" {
		t.Errorf("state = %v", patched["state"])
	}
}

func TestPostAuditComment(t *testing.T) {
	var body map[string]string
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/loomworks/loom/issues/5/comments" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
	}))

	if err := a.PostAuditComment(context.Background(), "5", types.StatusActive, types.StatusCompleted); err != nil {
		t.Fatalf("PostAuditComment: %v", err)
	}
	if body["body"] == "" {
		t.Error("empty comment body")
	}
}
