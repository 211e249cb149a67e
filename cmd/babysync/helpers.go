package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/viper"

	"github.com/simplebaby/babysync/internal/fieldcrypt"
	"github.com/simplebaby/babysync/internal/remote"
	"github.com/simplebaby/babysync/internal/schema"
	"github.com/simplebaby/babysync/internal/session"
	"github.com/simplebaby/babysync/internal/store"
)

func dbPath() string {
	return filepath.Join(dataDir(), "babysync.db")
}

func keyPath() string {
	return filepath.Join(dataDir(), "field.key")
}

// openStore opens the local database and ensures the schema exists.
func openStore() (*store.DB, error) {
	db, err := store.Open(dbPath())
	if err != nil {
		return nil, err
	}
	if err := db.Init(schema.Tables()...); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func sessionStore() *session.FileStore {
	return session.NewFileStore(filepath.Join(dataDir(), "session.json"))
}

// currentToken returns the signed-in user's access token, or "" when signed
// out.
func currentToken() string {
	sess, err := sessionStore().Current()
	if err != nil || sess == nil {
		return ""
	}
	return sess.AccessToken
}

func backendConfig() (url, anonKey string, err error) {
	url = viper.GetString("url")
	anonKey = viper.GetString("anon_key")
	if url == "" || anonKey == "" {
		return "", "", fmt.Errorf("backend is not configured: set url and anon_key (flags, BABYSYNC_URL/BABYSYNC_ANON_KEY, or config file)")
	}
	return url, anonKey, nil
}

func remoteClient() (*remote.Client, error) {
	url, anonKey, err := backendConfig()
	if err != nil {
		return nil, err
	}
	return remote.NewClient(url, anonKey, currentToken()), nil
}

func authClient() (*session.AuthClient, error) {
	url, anonKey, err := backendConfig()
	if err != nil {
		return nil, err
	}
	return session.NewAuthClient(url, anonKey), nil
}

func loadCipher() (fieldcrypt.Cipher, error) {
	return fieldcrypt.Load(keyPath())
}

// requireChild resolves the active child or explains how to get one.
func requireChild() (string, error) {
	res := session.NewResolver(sessionStore()).Resolve()
	if !res.OK {
		return "", fmt.Errorf("%s (sign in with \"babysync login\" and select a child with \"babysync child use\")", res.Reason)
	}
	return res.ChildID, nil
}

// parseEventTime turns a --at value into an RFC 3339 timestamp. Accepts
// RFC 3339 directly, otherwise natural expressions like "10 minutes ago" or
// "yesterday 3pm". Empty and "now" mean the current time.
func parseEventTime(s string) (string, error) {
	if s == "" || strings.EqualFold(s, "now") {
		return time.Now().Format(time.RFC3339), nil
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format(time.RFC3339), nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	r, err := w.Parse(s, time.Now())
	if err != nil {
		return "", fmt.Errorf("failed to parse time %q: %w", s, err)
	}
	if r == nil {
		return "", fmt.Errorf("could not understand time %q", s)
	}
	return r.Time.Format(time.RFC3339), nil
}
