package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/panyam/adaptiva/chartspec"
)

// SavedChart is a named, persisted chart spec.
type SavedChart struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Spec      chartspec.ChartSpec `json:"spec"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// ChartStore persists saved charts. Get and Delete return ErrNoSuchEntity
// for unknown ids.
type ChartStore interface {
	Put(ctx context.Context, c *SavedChart) error
	Get(ctx context.Context, id string) (*SavedChart, error)
	List(ctx context.Context) ([]*SavedChart, error)
	Delete(ctx context.Context, id string) error
}

// SavedChartService stamps ids, versions and times before handing charts to
// a ChartStore. Only structurally valid specs are stored.
type SavedChartService struct {
	Store ChartStore
	now   func() time.Time
}

func NewSavedChartService(store ChartStore) *SavedChartService {
	return &SavedChartService{Store: store, now: time.Now}
}

func (s *SavedChartService) Save(ctx context.Context, name string, spec chartspec.ChartSpec) (*SavedChart, error) {
	spec = spec.Normalize()
	if err := spec.CheckStructure(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		name = fmt.Sprintf("%s of %s", spec.ChartType, spec.XAxis.Column)
	}
	now := s.now().UTC()
	c := &SavedChart{ID: uuid.NewString(), Name: name, Spec: spec, CreatedAt: now, UpdatedAt: now}
	if err := s.Store.Put(ctx, c); err != nil {
		return nil, err
	}
	slog.Info("Saved chart", "id", c.ID, "chart_type", spec.ChartType, "dataset", spec.DatasetRef.String())
	return c, nil
}

func (s *SavedChartService) Get(ctx context.Context, id string) (*SavedChart, error) {
	return s.Store.Get(ctx, id)
}

func (s *SavedChartService) List(ctx context.Context) ([]*SavedChart, error) {
	return s.Store.List(ctx)
}

func (s *SavedChartService) Delete(ctx context.Context, id string) error {
	return s.Store.Delete(ctx, id)
}

// FileChartStore keeps one JSON file per chart under a base directory.
type FileChartStore struct {
	basePath string
}

const defaultChartsBasePath = "./data/charts"

func NewFileChartStore(basePath string) (*FileChartStore, error) {
	if basePath == "" {
		basePath = defaultChartsBasePath
	}
	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("could not resolve charts path '%s': %w", basePath, err)
	}
	if err := ensureDir(absPath); err != nil {
		return nil, fmt.Errorf("could not create charts directory '%s': %w", absPath, err)
	}
	return &FileChartStore{basePath: absPath}, nil
}

func (fs *FileChartStore) chartPath(id string) (string, error) {
	safe := sanitizeFilename(id)
	if safe == "" || safe != id {
		return "", fmt.Errorf("%w: invalid chart id %q", ErrInvalidRequest, id)
	}
	return filepath.Join(fs.basePath, safe+".json"), nil
}

func (fs *FileChartStore) Put(ctx context.Context, c *SavedChart) error {
	path, err := fs.chartPath(c.ID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize chart %s: %w", c.ID, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		slog.Error("Failed to write chart file", "id", c.ID, "path", path, "error", err)
		return fmt.Errorf("failed to save chart %s: %w", c.ID, err)
	}
	return nil
}

func (fs *FileChartStore) Get(ctx context.Context, id string) (*SavedChart, error) {
	path, err := fs.chartPath(id)
	if err != nil {
		return nil, ErrNoSuchEntity
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSuchEntity
		}
		return nil, fmt.Errorf("failed to read chart %s: %w", id, err)
	}
	var c SavedChart
	if err := json.Unmarshal(data, &c); err != nil {
		slog.Error("Failed to parse chart file", "id", id, "path", path, "error", err)
		return nil, fmt.Errorf("failed to parse chart %s: %w", id, err)
	}
	if c.ID != id {
		return nil, fmt.Errorf("chart ID mismatch for %s", id)
	}
	return &c, nil
}

// List returns every chart, most recently updated first. Unreadable files
// are logged and skipped.
func (fs *FileChartStore) List(ctx context.Context) ([]*SavedChart, error) {
	entries, err := os.ReadDir(fs.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list charts: %w", err)
	}
	out := []*SavedChart{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		c, err := fs.Get(ctx, strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			slog.Warn("Skipping unreadable chart", "file", e.Name(), "error", err)
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (fs *FileChartStore) Delete(ctx context.Context, id string) error {
	path, err := fs.chartPath(id)
	if err != nil {
		return ErrNoSuchEntity
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNoSuchEntity
		}
		slog.Error("Failed to delete chart", "id", id, "path", path, "error", err)
		return fmt.Errorf("failed to delete chart %s: %w", id, err)
	}
	return nil
}

// Creates a directory if it doesn't exist.
func ensureDir(path string) error {
	err := os.MkdirAll(path, 0755)
	if err != nil && !errors.Is(err, os.ErrExist) {
		slog.Error("Failed to create directory", "path", path, "error", err)
		return err
	}
	return nil
}

// Basic filename sanitizer
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "")
	name = strings.ReplaceAll(name, "\\", "")
	return name
}
