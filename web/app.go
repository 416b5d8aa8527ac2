package web

import (
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"

	"github.com/panyam/adaptiva/config"
	"github.com/panyam/adaptiva/services"
	"github.com/panyam/adaptiva/viz"
)

// ChartsApp serves the JSON API over datasets, charts and saved charts.
type ChartsApp struct {
	Datasets *services.DatasetService
	Charts   *services.ChartService
	Saved    *services.SavedChartService
	Session  *scs.SessionManager
	Limiter  *SuggestLimiter

	// Plotter draws SVG previews. Nil uses a plotter themed from the figure.
	Plotter viz.Plotter

	mux *http.ServeMux
}

func NewChartsApp(datasets *services.DatasetService, charts *services.ChartService, saved *services.SavedChartService, limits config.RateLimitConfig) *ChartsApp {
	session := scs.New()
	session.Lifetime = 24 * time.Hour
	session.Cookie.Name = "adaptiva_session"
	return &ChartsApp{
		Datasets: datasets,
		Charts:   charts,
		Saved:    saved,
		Session:  session,
		Limiter:  NewSuggestLimiter(session, limits),
	}
}

func (n *ChartsApp) Handler() http.Handler {
	n.mux = http.NewServeMux()
	n.mux.HandleFunc("GET /healthz", n.healthz)

	n.mux.HandleFunc("POST /api/upload", n.upload)
	n.mux.HandleFunc("GET /api/datasets", n.listDatasets)
	n.mux.HandleFunc("GET /api/datasets/{id}", n.getDataset)
	n.mux.HandleFunc("DELETE /api/datasets/{id}", n.deleteDataset)
	n.mux.HandleFunc("GET /api/datasets/{id}/preview", n.preview)
	n.mux.HandleFunc("POST /api/datasets/{id}/clean", n.clean)
	n.mux.HandleFunc("GET /api/datasets/{id}/insights", n.insights)

	n.mux.HandleFunc("POST /api/charts/validate", n.validateChart)
	n.mux.HandleFunc("POST /api/charts/render", n.renderChart)
	n.mux.HandleFunc("POST /api/charts/render.svg", n.renderSVG)
	n.mux.HandleFunc("POST /api/charts/suggest", n.Limiter.Wrap(n.suggestChart))

	n.mux.HandleFunc("POST /api/charts/saved", n.saveChart)
	n.mux.HandleFunc("GET /api/charts/saved", n.listSavedCharts)
	n.mux.HandleFunc("GET /api/charts/saved/{id}", n.getSavedChart)
	n.mux.HandleFunc("DELETE /api/charts/saved/{id}", n.deleteSavedChart)

	return n.Session.LoadAndSave(logRequests(n.mux))
}
