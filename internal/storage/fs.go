// Package storage persists audio evidence for packets and submissions.
package storage

import (
	"errors"
	"io"
	"net/url"
	"os"
	"path/filepath"
)

// AudioStore keeps raw recording blobs on the local filesystem, keyed
// by a caller-chosen path under the base directory.
type AudioStore struct{ base string }

func NewAudioStore(base string) (*AudioStore, error) {
	if base == "" {
		base = "./data/audio"
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	return &AudioStore{base: base}, nil
}

func (s *AudioStore) Put(key string, r io.Reader) (string, error) {
	if key == "" {
		return "", errors.New("empty key")
	}
	dst := filepath.Join(s.base, filepath.Clean(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", err
	}
	return key, nil
}

func (s *AudioStore) Get(key string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.base, filepath.Clean(key)))
}

func (s *AudioStore) URL(key string) (string, error) {
	u := url.URL{Scheme: "file", Path: filepath.Join(s.base, key)}
	return u.String(), nil
}

func (s *AudioStore) Delete(key string) error {
	return os.Remove(filepath.Join(s.base, filepath.Clean(key)))
}
