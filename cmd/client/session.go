package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// savedSession is what the CLI keeps between runs. Only credentials are
// stored; tasks always come from the server.
type savedSession struct {
	Server       string `yaml:"server"`
	UserID       string `yaml:"user_id"`
	Email        string `yaml:"email"`
	RefreshToken string `yaml:"refresh_token"`
}

func loadSession(path string) (savedSession, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return savedSession{}, nil
	}
	if err != nil {
		return savedSession{}, fmt.Errorf("read session file: %w", err)
	}

	var s savedSession
	if err := yaml.Unmarshal(data, &s); err != nil {
		return savedSession{}, fmt.Errorf("parse session file %s: %w", path, err)
	}
	return s, nil
}

func saveSession(path string, s savedSession) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

func clearSession(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}
