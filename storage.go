/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/spf13/afero"
)

// Store is the unit of durability: it loads and saves the whole document.
type Store interface {
	Load() (*Document, error)
	Save(doc *Document) error
}

// fileStore keeps the document as a single JSON file, the server-side
// equivalent of the browser's localStorage copy.
type fileStore struct {
	fs   afero.Fs
	path string
	mu   sync.Mutex
}

func newFileStore(fs afero.Fs, path string) *fileStore {
	return &fileStore{fs: fs, path: path}
}

func (s *fileStore) Load() (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := afero.ReadFile(s.fs, s.path)
	if os.IsNotExist(err) {
		return newDocument(), nil
	}
	if err != nil {
		return nil, &StorageError{Op: "load", Err: err}
	}

	doc := newDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, &StorageError{Op: "load", Err: err}
	}
	if doc.ActiveSessions == nil {
		doc.ActiveSessions = make(map[string]*Session)
	}

	return doc, nil
}

func (s *fileStore) Save(doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return &StorageError{Op: "save", Err: err}
	}

	if err := afero.WriteFile(s.fs, s.path, data, 0o644); err != nil {
		return &StorageError{Op: "save", Err: err}
	}

	return nil
}

// remoteStore speaks the jsonbin v3 document API: GET $api/$bin/latest
// returns {"record": <document>}, PUT $api/$bin replaces it. Requests are
// authenticated with the X-Master-Key header.
type remoteStore struct {
	apiURL string
	binID  string
	apiKey string
	client *http.Client
}

type binEnvelope struct {
	Record *Document `json:"record"`
}

func newRemoteStore(apiURL, binID, apiKey string) *remoteStore {
	return &remoteStore{
		apiURL: apiURL,
		binID:  binID,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *remoteStore) Load() (*Document, error) {
	req, err := http.NewRequest(http.MethodGet, s.apiURL+"/"+s.binID+"/latest", nil)
	if err != nil {
		return nil, &StorageError{Op: "load", Err: err}
	}
	req.Header.Set("X-Master-Key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &StorageError{Op: "load", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StorageError{Op: "load", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var envelope binEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, &StorageError{Op: "load", Err: err}
	}
	if envelope.Record == nil {
		return newDocument(), nil
	}
	if envelope.Record.ActiveSessions == nil {
		envelope.Record.ActiveSessions = make(map[string]*Session)
	}

	return envelope.Record, nil
}

func (s *remoteStore) Save(doc *Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return &StorageError{Op: "save", Err: err}
	}

	req, err := http.NewRequest(http.MethodPut, s.apiURL+"/"+s.binID, bytes.NewReader(data))
	if err != nil {
		return &StorageError{Op: "save", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Master-Key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return &StorageError{Op: "save", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StorageError{Op: "save", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	return nil
}

func (s *remoteStore) testConnection() bool {
	_, err := s.Load()
	return err == nil
}

// layeredStore mirrors the original persistence behavior: prefer the shared
// remote bin, shadow every document locally, and downgrade silently to the
// local copy when the remote path fails. Storage failures reduce durability
// but are never surfaced to callers.
type layeredStore struct {
	cfg    *Config
	local  Store
	remote *remoteStore
}

func newLayeredStore(cfg *Config, local Store, remote *remoteStore) *layeredStore {
	return &layeredStore{cfg: cfg, local: local, remote: remote}
}

func (s *layeredStore) Load() (*Document, error) {
	if s.remote != nil {
		doc, err := s.remote.Load()
		if err == nil {
			if err := s.local.Save(doc); err != nil {
				logf(s.cfg, "STORE: Local mirror failed: %v", err)
			}
			return doc, nil
		}
		logf(s.cfg, "STORE: Remote load failed, using local copy: %v", err)
	}

	return s.local.Load()
}

func (s *layeredStore) Save(doc *Document) error {
	// Local first, so a remote outage costs remote durability only.
	if err := s.local.Save(doc); err != nil {
		return err
	}

	if s.remote != nil {
		if err := s.remote.Save(doc); err != nil {
			logf(s.cfg, "STORE: Remote save failed, local copy retained: %v", err)
		}
	}

	return nil
}
