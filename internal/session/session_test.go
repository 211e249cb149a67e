package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "state", "session.json"))

	sess := &Session{
		AccessToken:  "token-abc",
		RefreshToken: "refresh-xyz",
		TokenType:    "bearer",
		ExpiresIn:    3600,
		User: &User{
			ID:       "user-1",
			Email:    "parent@example.com",
			Metadata: map[string]any{"active_child": "child-1"},
		},
	}
	if err := fs.Save(sess); err != nil {
		t.Fatalf("failed to save session: %v", err)
	}

	got, err := fs.Current()
	if err != nil {
		t.Fatalf("failed to load session: %v", err)
	}
	if got.AccessToken != "token-abc" {
		t.Errorf("unexpected token %q", got.AccessToken)
	}
	if got.User == nil || got.User.Metadata["active_child"] != "child-1" {
		t.Errorf("user metadata lost: %+v", got.User)
	}
}

func TestFileStoreSignedOut(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "session.json"))

	sess, err := fs.Current()
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if sess != nil {
		t.Error("missing file should read as signed out")
	}
}

func TestFileStoreClear(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "session.json"))

	if err := fs.Save(&Session{AccessToken: "t"}); err != nil {
		t.Fatalf("failed to save session: %v", err)
	}
	if err := fs.Clear(); err != nil {
		t.Fatalf("failed to clear session: %v", err)
	}
	if sess, _ := fs.Current(); sess != nil {
		t.Error("session survived clear")
	}

	// Clearing again is a no-op.
	if err := fs.Clear(); err != nil {
		t.Errorf("clearing an absent session should succeed: %v", err)
	}
}

func TestFileStorePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not meaningful on windows")
	}

	path := filepath.Join(t.TempDir(), "session.json")
	fs := NewFileStore(path)
	if err := fs.Save(&Session{AccessToken: "secret"}); err != nil {
		t.Fatalf("failed to save session: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("failed to stat session file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("session file should be owner-only, got %04o", perm)
	}
}

type staticSource struct {
	sess *Session
	err  error
}

func (s staticSource) Current() (*Session, error) { return s.sess, s.err }

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		source     Source
		wantOK     bool
		wantChild  string
		wantReason string
	}{
		{
			name:       "signed out",
			source:     staticSource{},
			wantReason: "not signed in",
		},
		{
			name:       "no user",
			source:     staticSource{sess: &Session{AccessToken: "t"}},
			wantReason: "not signed in",
		},
		{
			name: "no selection",
			source: staticSource{sess: &Session{
				User: &User{ID: "u", Metadata: map[string]any{}},
			}},
			wantReason: "no active child selected",
		},
		{
			name: "non-string selection",
			source: staticSource{sess: &Session{
				User: &User{ID: "u", Metadata: map[string]any{"active_child": 42}},
			}},
			wantReason: "no active child selected",
		},
		{
			name: "selected",
			source: staticSource{sess: &Session{
				User: &User{ID: "u", Metadata: map[string]any{"active_child": "child-7"}},
			}},
			wantOK:    true,
			wantChild: "child-7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewResolver(tt.source).Resolve()
			if res.OK != tt.wantOK {
				t.Errorf("OK = %v, want %v (reason %q)", res.OK, tt.wantOK, res.Reason)
			}
			if res.ChildID != tt.wantChild {
				t.Errorf("ChildID = %q, want %q", res.ChildID, tt.wantChild)
			}
			if tt.wantReason != "" && res.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", res.Reason, tt.wantReason)
			}
		})
	}
}

func TestSignIn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/token" || r.URL.Query().Get("grant_type") != "password" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL)
		}
		if r.Header.Get("apikey") != "anon-key" {
			t.Errorf("unexpected apikey %q", r.Header.Get("apikey"))
		}

		var creds map[string]string
		json.NewDecoder(r.Body).Decode(&creds)
		if creds["email"] != "parent@example.com" {
			t.Errorf("unexpected email %q", creds["email"])
		}

		json.NewEncoder(w).Encode(Session{
			AccessToken: "issued-token",
			TokenType:   "bearer",
			User:        &User{ID: "user-1", Email: creds["email"]},
		})
	}))
	defer srv.Close()

	client := NewAuthClient(srv.URL, "anon-key")
	sess, err := client.SignIn(context.Background(), "parent@example.com", "hunter2")
	if err != nil {
		t.Fatalf("sign-in failed: %v", err)
	}
	if sess.AccessToken != "issued-token" || sess.User.ID != "user-1" {
		t.Errorf("unexpected session %+v", sess)
	}
}

func TestSignInRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error_description":"Invalid login credentials"}`))
	}))
	defer srv.Close()

	client := NewAuthClient(srv.URL, "anon-key")
	_, err := client.SignIn(context.Background(), "parent@example.com", "wrong")
	if err == nil {
		t.Fatal("expected sign-in to fail")
	}
	if !strings.Contains(err.Error(), "Invalid login credentials") {
		t.Errorf("error should carry the server message, got %v", err)
	}
}

func TestUpdateActiveChild(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/auth/v1/user" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer user-token" {
			t.Errorf("unexpected authorization %q", r.Header.Get("Authorization"))
		}

		var body struct {
			Data map[string]any `json:"data"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Data["active_child"] != "child-9" {
			t.Errorf("unexpected update body %v", body.Data)
		}

		json.NewEncoder(w).Encode(User{
			ID:       "user-1",
			Metadata: map[string]any{"active_child": "child-9"},
		})
	}))
	defer srv.Close()

	client := NewAuthClient(srv.URL, "anon-key")
	user, err := client.UpdateActiveChild(context.Background(), "user-token", "child-9")
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if user.Metadata["active_child"] != "child-9" {
		t.Errorf("updated metadata not returned: %+v", user.Metadata)
	}
}

func TestResolverSeesMetadataUpdate(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	resolver := NewResolver(fs)

	if err := fs.Save(&Session{User: &User{ID: "u", Metadata: map[string]any{}}}); err != nil {
		t.Fatalf("failed to save session: %v", err)
	}
	if res := resolver.Resolve(); res.OK {
		t.Fatal("expected no selection yet")
	}

	// Another command selects a child and rewrites the file; the resolver
	// observes the change without being recreated.
	if err := fs.Save(&Session{User: &User{
		ID:       "u",
		Metadata: map[string]any{"active_child": "child-3"},
	}}); err != nil {
		t.Fatalf("failed to save session: %v", err)
	}

	res := resolver.Resolve()
	if !res.OK || res.ChildID != "child-3" {
		t.Errorf("resolver should pick up the new selection, got %+v", res)
	}
}
