// Package httpapi expone la superficie HTTP del daemon: health check,
// métricas Prometheus y el último run report. Solo lectura; ninguna
// mutación de topología pasa por acá.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dropDatabas3/pgmesh/internal/reconcile"
)

// ReportSource devuelve el último reporte disponible; nil si todavía no
// corrió ningún pass.
type ReportSource func() *reconcile.RunReport

// New construye el router del daemon.
func New(lastReport ReportSource) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/v1/report", func(w http.ResponseWriter, req *http.Request) {
		rep := lastReport()
		if rep == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no reconciliation pass completed yet"})
			return
		}
		writeJSON(w, http.StatusOK, rep)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
