package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
)

type storedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// loadSession returns the cookies saved by a previous login. A missing file yields none.
func loadSession(path string) ([]*http.Cookie, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	var stored []storedCookie
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("parse session file %s: %w", path, err)
	}
	cookies := make([]*http.Cookie, 0, len(stored))
	for _, cookie := range stored {
		cookies = append(cookies, &http.Cookie{Name: cookie.Name, Value: cookie.Value})
	}
	return cookies, nil
}

func saveSession(path string, cookies []*http.Cookie) error {
	stored := make([]storedCookie, 0, len(cookies))
	for _, cookie := range cookies {
		stored = append(stored, storedCookie{Name: cookie.Name, Value: cookie.Value})
	}
	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
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
