// Package fs stores history summaries as JSON files on any afs supported
// storage.
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"
	"github.com/viant/tokenflow/service/dao"
	"github.com/viant/tokenflow/service/dao/history"
	"go.uber.org/multierr"
)

// Service implements a file based history store
type Service struct {
	basePath string
	fs       afs.Service
	mu       sync.RWMutex
}

var _ history.Store = (*Service)(nil)

// Save persists a summary
func (s *Service) Save(ctx context.Context, summary *history.Summary) error {
	if summary == nil {
		return dao.ErrNilEntity
	}
	if summary.InstanceID == "" {
		return dao.ErrInvalidID
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	filePath := s.summaryPath(summary.InstanceID)
	if err = s.fs.Upload(ctx, filePath, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save summary to %s: %w", filePath, err)
	}
	return nil
}

// Load retrieves a summary
func (s *Service) Load(ctx context.Context, id string) (*history.Summary, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	filePath := s.summaryPath(id)
	exists, err := s.fs.Exists(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to check summary %v: %w", id, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %v", dao.ErrNotFound, id)
	}
	data, err := s.fs.DownloadWithURL(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read summary %v: %w", id, err)
	}
	summary := &history.Summary{}
	if err = json.Unmarshal(data, summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary %v: %w", id, err)
	}
	return summary, nil
}

// Delete removes a summary
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	filePath := s.summaryPath(id)
	exists, err := s.fs.Exists(ctx, filePath)
	if err != nil {
		return fmt.Errorf("failed to check summary %v: %w", id, err)
	}
	if !exists {
		return fmt.Errorf("%w: %v", dao.ErrNotFound, id)
	}
	return s.fs.Delete(ctx, filePath)
}

// List returns stored summaries matching parameters. Unreadable files are
// skipped and reported in the returned error.
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*history.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	objects, err := s.fs.List(ctx, s.basePath, option.NewRecursive(true))
	if err != nil {
		return nil, fmt.Errorf("failed to list summaries: %w", err)
	}
	var result []*history.Summary
	var errs error
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		data, err := s.fs.Download(ctx, object)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to read %v: %w", object.URL(), err))
			continue
		}
		summary := &history.Summary{}
		if err = json.Unmarshal(data, summary); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to unmarshal %v: %w", object.URL(), err))
			continue
		}
		if dao.Match(summary, parameters...) {
			result = append(result, summary)
		}
	}
	return result, errs
}

func (s *Service) summaryPath(id string) string {
	return url.Join(s.basePath, path.Base(id)+".json")
}

// New creates a file based history store rooted at basePath
func New(basePath string) (*Service, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	fs := afs.New()
	ctx := context.Background()
	if exists, _ := fs.Exists(ctx, basePath); !exists {
		if err := fs.Create(ctx, basePath, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", err)
		}
	}
	return &Service{basePath: url.Normalize(basePath, file.Scheme), fs: fs}, nil
}
