package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/datastore"

	"github.com/panyam/adaptiva/chartspec"
)

// DataStore is a typed view over one Cloud Datastore kind keyed by name.
type DataStore[T any] struct {
	DSClient *datastore.Client
	kind     string
	IDToKey  func(id string) *datastore.Key
}

func NewDataStore[T any](client *datastore.Client, kind string) *DataStore[T] {
	return &DataStore[T]{
		DSClient: client,
		kind:     kind,
		IDToKey: func(id string) *datastore.Key {
			return datastore.NameKey(kind, id, nil)
		},
	}
}

func (ds *DataStore[T]) Kind() string {
	return ds.kind
}

func (ds *DataStore[T]) GetByID(ctx context.Context, id string, out *T) error {
	err := ds.DSClient.Get(ctx, ds.IDToKey(id), out)
	if err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return ErrNoSuchEntity
		}
		slog.Error("Error getting by ID", "kind", ds.kind, "id", id, "err", err)
	}
	return err
}

func (ds *DataStore[T]) DeleteByID(ctx context.Context, id string) error {
	return ds.DSClient.Delete(ctx, ds.IDToKey(id))
}

func (ds *DataStore[T]) Save(ctx context.Context, id string, entity *T) error {
	_, err := ds.DSClient.Put(ctx, ds.IDToKey(id), entity)
	if err != nil {
		slog.Error("Error saving entity", "kind", ds.kind, "id", id, "err", err)
	}
	return err
}

func (ds *DataStore[T]) NewQuery() *datastore.Query {
	return datastore.NewQuery(ds.kind)
}

func (ds *DataStore[T]) Select(ctx context.Context, query *datastore.Query) (out []*T, err error) {
	_, err = ds.DSClient.GetAll(ctx, query, &out)
	if err != nil {
		slog.Error("error selecting with query", "kind", ds.kind, "err", err)
		return nil, err
	}
	return
}

// chartEntity is the stored form of a SavedChart. The spec is kept as
// unindexed JSON; a few fields are lifted out for querying.
type chartEntity struct {
	Name      string
	DatasetID string
	ChartType string
	SpecJSON  string `datastore:",noindex"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func toChartEntity(c *SavedChart) (*chartEntity, error) {
	spec, err := json.Marshal(c.Spec)
	if err != nil {
		return nil, err
	}
	return &chartEntity{
		Name:      c.Name,
		DatasetID: c.Spec.DatasetRef.DatasetID,
		ChartType: string(c.Spec.ChartType),
		SpecJSON:  string(spec),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}, nil
}

func fromChartEntity(id string, e *chartEntity) (*SavedChart, error) {
	spec, err := chartspec.Parse([]byte(e.SpecJSON))
	if err != nil {
		return nil, fmt.Errorf("stored chart %s has an invalid spec: %w", id, err)
	}
	return &SavedChart{ID: id, Name: e.Name, Spec: spec, CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt}, nil
}

// DatastoreChartStore keeps saved charts in Google Cloud Datastore.
type DatastoreChartStore struct {
	charts *DataStore[chartEntity]
}

const savedChartKind = "SavedChart"

func NewDatastoreChartStore(ctx context.Context, projectID string) (*DatastoreChartStore, error) {
	client, err := datastore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("connecting to datastore project %q: %w", projectID, err)
	}
	return &DatastoreChartStore{charts: NewDataStore[chartEntity](client, savedChartKind)}, nil
}

func (s *DatastoreChartStore) Put(ctx context.Context, c *SavedChart) error {
	e, err := toChartEntity(c)
	if err != nil {
		return err
	}
	return s.charts.Save(ctx, c.ID, e)
}

func (s *DatastoreChartStore) Get(ctx context.Context, id string) (*SavedChart, error) {
	var e chartEntity
	if err := s.charts.GetByID(ctx, id, &e); err != nil {
		return nil, err
	}
	return fromChartEntity(id, &e)
}

func (s *DatastoreChartStore) List(ctx context.Context) ([]*SavedChart, error) {
	var entities []*chartEntity
	keys, err := s.charts.DSClient.GetAll(ctx, s.charts.NewQuery().Order("-UpdatedAt"), &entities)
	if err != nil {
		return nil, err
	}
	out := make([]*SavedChart, 0, len(entities))
	for i, e := range entities {
		c, err := fromChartEntity(keys[i].Name, e)
		if err != nil {
			slog.Warn("Skipping stored chart", "id", keys[i].Name, "error", err)
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *DatastoreChartStore) Delete(ctx context.Context, id string) error {
	var e chartEntity
	if err := s.charts.GetByID(ctx, id, &e); err != nil {
		return err
	}
	return s.charts.DeleteByID(ctx, id)
}

func (s *DatastoreChartStore) Close() error {
	return s.charts.DSClient.Close()
}
