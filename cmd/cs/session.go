package main

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/alfredjeanlab/callsheet/internal/model"
)

// Session is the caller's local state between commands.
type Session struct {
	User    string `toml:"user,omitempty"`
	HTTPURL string `toml:"http_url,omitempty"`
	Server  string `toml:"server,omitempty"`
	Token   string `toml:"token,omitempty"`
	NATSURL string `toml:"nats_url,omitempty"`

	Held *HeldTicket `toml:"held,omitempty"`
}

// HeldTicket is the row the caller is working, as it looked when claimed.
type HeldTicket struct {
	Ticket    model.Ticket `toml:"ticket"`
	Resumed   bool         `toml:"resumed,omitempty"`
	ClaimedAt time.Time    `toml:"claimed_at"`
}

func sessionPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".local", "state", "callsheet")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "session.toml"), nil
}

func loadSession() (Session, error) {
	path, err := sessionPath()
	if err != nil {
		return Session{}, err
	}
	var s Session
	if _, err := toml.DecodeFile(path, &s); err != nil {
		if os.IsNotExist(err) {
			return Session{}, nil
		}
		return Session{}, err
	}
	return s, nil
}

func saveSession(s Session) error {
	path, err := sessionPath()
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(s)
}

// updateSession loads the session, applies fn and saves the result.
func updateSession(fn func(*Session)) error {
	s, err := loadSession()
	if err != nil {
		return err
	}
	fn(&s)
	sessionOnce.Do(func() {})
	cachedSession = s
	return saveSession(s)
}

// Session values for flag defaults, loaded once per process.
var (
	sessionOnce   sync.Once
	cachedSession Session
)

func activeSession() Session {
	sessionOnce.Do(func() {
		cachedSession, _ = loadSession()
	})
	return cachedSession
}
