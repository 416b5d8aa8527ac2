package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/panyam/adaptiva/chartspec"
	"github.com/panyam/adaptiva/services"
	"github.com/panyam/adaptiva/tables"
	"github.com/panyam/adaptiva/viz"
)

const maxMultipartMemory = 32 << 20

func (n *ChartsApp) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeBody reads a JSON request body into out. An empty body leaves out
// untouched.
func decodeBody(r *http.Request, out any) error {
	err := json.NewDecoder(r.Body).Decode(out)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("%w: %v", services.ErrInvalidRequest, err)
}

// readSpec parses the request body as a chart spec.
func readSpec(r *http.Request) (chartspec.ChartSpec, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return chartspec.ChartSpec{}, fmt.Errorf("%w: %v", services.ErrInvalidRequest, err)
	}
	return chartspec.Parse(data)
}

func datasetRef(r *http.Request) tables.DatasetRef {
	return tables.DatasetRef{DatasetID: r.PathValue("id"), Sheet: r.URL.Query().Get("sheet")}
}

func (n *ChartsApp) upload(w http.ResponseWriter, r *http.Request) {
	if limit := n.Datasets.MaxUploadBytes; limit > 0 {
		// Leave room for the multipart envelope; Upload enforces the exact limit.
		r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	}
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, r, err)
		} else {
			writeError(w, r, fmt.Errorf("%w: expected a multipart form with a file field: %v", services.ErrInvalidRequest, err))
		}
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: missing file field: %v", services.ErrInvalidRequest, err))
		return
	}
	defer file.Close()

	res, err := n.Datasets.Upload(r.Context(), header.Filename, file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("Dataset uploaded", "id", res.ID, "filename", header.Filename, "rows", res.Rows)
	writeJSON(w, http.StatusOK, res)
}

func (n *ChartsApp) listDatasets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"datasets": n.Datasets.List(r.Context())})
}

func (n *ChartsApp) getDataset(w http.ResponseWriter, r *http.Request) {
	ds, err := n.Datasets.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

func (n *ChartsApp) deleteDataset(w http.ResponseWriter, r *http.Request) {
	if err := n.Datasets.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (n *ChartsApp) preview(w http.ResponseWriter, r *http.Request) {
	maxRows := 0
	if v := r.URL.Query().Get("max_rows"); v != "" {
		var err error
		if maxRows, err = strconv.Atoi(v); err != nil {
			writeError(w, r, fmt.Errorf("%w: max_rows must be an integer", services.ErrInvalidRequest))
			return
		}
	}
	res, err := n.Datasets.Preview(r.Context(), datasetRef(r), maxRows)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (n *ChartsApp) clean(w http.ResponseWriter, r *http.Request) {
	var req services.CleanRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := n.Datasets.Clean(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (n *ChartsApp) insights(w http.ResponseWriter, r *http.Request) {
	res, err := n.Datasets.Insights(r.Context(), datasetRef(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (n *ChartsApp) validateChart(w http.ResponseWriter, r *http.Request) {
	spec, err := readSpec(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n.Charts.Validate(r.Context(), spec))
}

func (n *ChartsApp) renderChart(w http.ResponseWriter, r *http.Request) {
	spec, err := readSpec(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := n.Charts.Render(r.Context(), spec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (n *ChartsApp) renderSVG(w http.ResponseWriter, r *http.Request) {
	spec, err := readSpec(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := n.Charts.Render(r.Context(), spec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	svg, err := viz.RenderSVG(res.Figure, n.Plotter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	io.WriteString(w, svg)
}

func (n *ChartsApp) suggestChart(w http.ResponseWriter, r *http.Request) {
	var req services.SuggestRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := n.Charts.Suggest(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type saveChartRequest struct {
	Name string          `json:"name"`
	Spec json.RawMessage `json:"spec"`
}

func (n *ChartsApp) saveChart(w http.ResponseWriter, r *http.Request) {
	var req saveChartRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	spec, err := chartspec.Parse(req.Spec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := n.Saved.Save(r.Context(), req.Name, spec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (n *ChartsApp) listSavedCharts(w http.ResponseWriter, r *http.Request) {
	list, err := n.Saved.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []*services.SavedChart{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"charts": list})
}

func (n *ChartsApp) getSavedChart(w http.ResponseWriter, r *http.Request) {
	c, err := n.Saved.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (n *ChartsApp) deleteSavedChart(w http.ResponseWriter, r *http.Request) {
	if err := n.Saved.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
