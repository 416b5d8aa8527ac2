package tables

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DatasetRef identifies a table: a dataset id plus an optional sheet. An
// empty sheet means the dataset's active sheet.
type DatasetRef struct {
	DatasetID string `json:"dataset_id"`
	Sheet     string `json:"sheet,omitempty"`
}

func (r DatasetRef) String() string {
	if r.Sheet == "" {
		return r.DatasetID
	}
	return r.DatasetID + ":" + r.Sheet
}

// Provider resolves dataset references to table snapshots.
type Provider interface {
	Resolve(ctx context.Context, ref DatasetRef) (*Table, error)
}

// Limits bounds the tables the chart pipeline accepts. Zero means unbounded.
type Limits struct {
	MaxRows    int `yaml:"max_rows" json:"max_rows"`
	MaxColumns int `yaml:"max_columns" json:"max_columns"`
}

// Check returns an error wrapping ErrTableTooLarge if t exceeds the limits.
func (l Limits) Check(t *Table) error {
	if l.MaxRows > 0 && t.Len() > l.MaxRows {
		return fmt.Errorf("%w: %d rows (max %d)", ErrTableTooLarge, t.Len(), l.MaxRows)
	}
	if l.MaxColumns > 0 && t.Width() > l.MaxColumns {
		return fmt.Errorf("%w: %d columns (max %d)", ErrTableTooLarge, t.Width(), l.MaxColumns)
	}
	return nil
}

// Sheet is one named table inside an uploaded file.
type Sheet struct {
	Name  string
	Table *Table
}

// Dataset is the metadata kept for an uploaded file.
type Dataset struct {
	ID          string    `json:"dataset_id"`
	Filename    string    `json:"filename"`
	Sheets      []string  `json:"sheets"`
	ActiveSheet string    `json:"active_sheet"`
	UploadedAt  time.Time `json:"uploaded_at"`
	Rows        int       `json:"rows"`
	Columns     []Column  `json:"columns"`
}

type datasetEntry struct {
	meta   Dataset
	sheets map[string]*Table
}

// MemoryStore is an in-process Provider. Tables are immutable so Resolve
// hands out the stored pointer as a snapshot; updates swap in new tables.
type MemoryStore struct {
	mu       sync.RWMutex
	datasets map[string]*datasetEntry
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		datasets: map[string]*datasetEntry{},
		now:      time.Now,
	}
}

// Put registers a new dataset and returns its metadata. The first sheet is
// the active one.
func (s *MemoryStore) Put(filename string, sheets []Sheet) (Dataset, error) {
	if len(sheets) == 0 {
		return Dataset{}, ErrNoData
	}
	entry := &datasetEntry{sheets: make(map[string]*Table, len(sheets))}
	names := make([]string, 0, len(sheets))
	for _, sh := range sheets {
		if _, dup := entry.sheets[sh.Name]; dup {
			return Dataset{}, fmt.Errorf("duplicate sheet name %q", sh.Name)
		}
		entry.sheets[sh.Name] = sh.Table
		names = append(names, sh.Name)
	}
	active := sheets[0].Table
	entry.meta = Dataset{
		ID:          uuid.NewString(),
		Filename:    filename,
		Sheets:      names,
		ActiveSheet: names[0],
		UploadedAt:  s.now().UTC(),
		Rows:        active.Len(),
		Columns:     active.Columns(),
	}

	s.mu.Lock()
	s.datasets[entry.meta.ID] = entry
	s.mu.Unlock()
	slog.Info("Stored dataset", "id", entry.meta.ID, "filename", filename, "sheets", len(names))
	return entry.meta, nil
}

// Resolve implements Provider.
func (s *MemoryStore) Resolve(ctx context.Context, ref DatasetRef) (*Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.datasets[ref.DatasetID]
	if !ok {
		return nil, &NotFoundError{Ref: ref}
	}
	sheet := ref.Sheet
	if sheet == "" {
		sheet = entry.meta.ActiveSheet
	}
	t, ok := entry.sheets[sheet]
	if !ok {
		return nil, &NotFoundError{Ref: ref}
	}
	return t, nil
}

// Replace swaps the table behind ref, e.g. after cleaning. Readers holding
// the previous snapshot are unaffected.
func (s *MemoryStore) Replace(ref DatasetRef, t *Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.datasets[ref.DatasetID]
	if !ok {
		return &NotFoundError{Ref: ref}
	}
	sheet := ref.Sheet
	if sheet == "" {
		sheet = entry.meta.ActiveSheet
	}
	if _, ok := entry.sheets[sheet]; !ok {
		return &NotFoundError{Ref: ref}
	}
	entry.sheets[sheet] = t
	if sheet == entry.meta.ActiveSheet {
		entry.meta.Rows = t.Len()
		entry.meta.Columns = t.Columns()
	}
	return nil
}

// Dataset returns the metadata for id.
func (s *MemoryStore) Dataset(id string) (Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.datasets[id]
	if !ok {
		return Dataset{}, &NotFoundError{Ref: DatasetRef{DatasetID: id}}
	}
	meta := entry.meta
	meta.Sheets = append([]string(nil), meta.Sheets...)
	return meta, nil
}

// List returns every dataset, newest first.
func (s *MemoryStore) List() []Dataset {
	s.mu.RLock()
	out := make([]Dataset, 0, len(s.datasets))
	for _, e := range s.datasets {
		out = append(out, e.meta)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	return out
}

func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.datasets[id]; !ok {
		return &NotFoundError{Ref: DatasetRef{DatasetID: id}}
	}
	delete(s.datasets, id)
	return nil
}
