// Package meta loads YAML documents from any afs supported URL, expanding
// ${env.KEY} references before decoding.
package meta

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"
)

// Service loads resources
type Service struct {
	fs afs.Service
}

// Download returns the env expanded content of URL
func (s *Service) Download(ctx context.Context, URL string) ([]byte, error) {
	data, err := s.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to download %v: %w", URL, err)
	}
	return []byte(ExpandEnv(string(data))), nil
}

// Load decodes YAML at URL into dest; URLs without extension get ".yaml".
func (s *Service) Load(ctx context.Context, URL string, dest interface{}) error {
	if filepath.Ext(URL) == "" {
		URL += ".yaml"
	}
	data, err := s.Download(ctx, URL)
	if err != nil {
		return err
	}
	if err = yaml.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode %v: %w", URL, err)
	}
	return nil
}

// Exists checks whether URL exists
func (s *Service) Exists(ctx context.Context, URL string) (bool, error) {
	return s.fs.Exists(ctx, URL)
}

// New creates a meta service backed by fs, or afs.New() when nil
func New(fs afs.Service) *Service {
	if fs == nil {
		fs = afs.New()
	}
	return &Service{fs: fs}
}
