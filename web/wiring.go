package web

import (
	"context"
	"errors"
	"log/slog"

	"github.com/panyam/adaptiva/charts"
	"github.com/panyam/adaptiva/config"
	"github.com/panyam/adaptiva/services"
	"github.com/panyam/adaptiva/services/llm"
	"github.com/panyam/adaptiva/tables"
)

// NewAppFromConfig builds the dataset store, services and chart store that
// back a ChartsApp. The returned func releases the chart store.
func NewAppFromConfig(ctx context.Context, cfg config.Config) (*ChartsApp, func() error, error) {
	store := tables.NewMemoryStore()
	datasets := services.NewDatasetService(store, cfg.Limits, cfg.Server.MaxUploadBytes)

	client, err := llm.NewOpenAIClient(llm.Options{Model: cfg.LLM.Model, BaseURL: cfg.LLM.BaseURL})
	if errors.Is(err, llm.ErrAPIKeyMissing) {
		slog.Warn("OPENAI_API_KEY is not set; chart suggestions are disabled")
		client = nil
	} else if err != nil {
		return nil, nil, err
	}
	suggester := services.NewSuggester(store, cfg.Limits, client, services.SuggestOptions{
		Timeout:     cfg.LLM.Timeout,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})
	chartSvc := services.NewChartService(charts.NewRenderer(store, cfg.Limits), suggester)

	var chartStore services.ChartStore
	closeStore := func() error { return nil }
	switch cfg.Storage.Backend {
	case config.BackendDatastore:
		ds, err := services.NewDatastoreChartStore(ctx, cfg.Storage.Project)
		if err != nil {
			return nil, nil, err
		}
		chartStore, closeStore = ds, ds.Close
	default:
		fs, err := services.NewFileChartStore(cfg.Storage.ChartsPath)
		if err != nil {
			return nil, nil, err
		}
		chartStore = fs
	}
	slog.Info("Chart store ready", "backend", cfg.Storage.Backend)

	app := NewChartsApp(datasets, chartSvc, services.NewSavedChartService(chartStore), cfg.RateLimit)
	return app, closeStore, nil
}

// Serve runs the API described by cfg until ctx is cancelled or a shutdown
// signal arrives.
func Serve(ctx context.Context, cfg config.Config) error {
	chartsApp, closeStore, err := NewAppFromConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	app := App{Ctx: ctx}
	app.AddServer(&Server{
		Address:         cfg.Server.Address,
		Handler:         chartsApp.Handler(),
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	return app.Run()
}
