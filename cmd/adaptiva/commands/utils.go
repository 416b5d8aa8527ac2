package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"

	"github.com/panyam/adaptiva/charts"
	"github.com/panyam/adaptiva/chartspec"
	"github.com/panyam/adaptiva/config"
	"github.com/panyam/adaptiva/services"
	"github.com/panyam/adaptiva/tables"
)

var (
	errColor  = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow)
	okColor   = color.New(color.FgGreen)
	keyColor  = color.New(color.FgCyan)
)

func loadConfig() (config.Config, error) {
	return config.Load(configFile)
}

// localData loads a file into a fresh in-memory store.
type localData struct {
	Store    *tables.MemoryStore
	Ref      tables.DatasetRef
	Upload   *services.UploadResult
	Datasets *services.DatasetService
}

func loadLocalData(ctx context.Context, cfg config.Config, path, sheet string) (*localData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	store := tables.NewMemoryStore()
	// Local files are not subject to the upload size limit.
	datasets := services.NewDatasetService(store, cfg.Limits, 0)
	up, err := datasets.Upload(ctx, filepath.Base(path), f)
	if err != nil {
		return nil, err
	}
	return &localData{
		Store:    store,
		Ref:      tables.DatasetRef{DatasetID: up.ID, Sheet: sheet},
		Upload:   up,
		Datasets: datasets,
	}, nil
}

// readSpecFile reads a JSON chart spec and points it at ref.
func readSpecFile(path string, ref tables.DatasetRef) (chartspec.ChartSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return chartspec.ChartSpec{}, err
	}
	var spec chartspec.ChartSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return chartspec.ChartSpec{}, &chartspec.StructuralError{Problems: []chartspec.Problem{{Message: err.Error()}}}
	}
	spec.DatasetRef = ref
	spec = spec.Normalize()
	if err := spec.CheckStructure(); err != nil {
		return chartspec.ChartSpec{}, err
	}
	return spec, nil
}

func printIssues(w io.Writer, res charts.ValidationResult) {
	for _, is := range res.Errors {
		errColor.Fprint(w, "error   ")
		printIssue(w, is)
	}
	for _, is := range res.Warnings {
		warnColor.Fprint(w, "warning ")
		printIssue(w, is)
	}
}

func printIssue(w io.Writer, is charts.Issue) {
	keyColor.Fprintf(w, "%s", is.Field)
	fmt.Fprintf(w, " [%s] %s\n", is.Code, is.Message)
	if is.Suggestion != "" {
		fmt.Fprintf(w, "        hint: %s\n", is.Suggestion)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
