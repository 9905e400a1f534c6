// Package web serves the monitoring panel: an HTML page and the JSON
// endpoint it polls. It reads exclusively through the panel facade.
package web

import (
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"github.com/hospitech/bedwatch/internal/log"
	"github.com/hospitech/bedwatch/internal/panel"
)

// Handler serves the panel routes.
type Handler struct {
	facade     *panel.Facade
	staleAfter time.Duration
	log        log.Logger
	mux        *http.ServeMux
}

// NewHandler builds the panel handler. staleAfter is the maximum age a
// reading may have and still be shown.
func NewHandler(
	facade *panel.Facade,
	staleAfter time.Duration,
	logger log.Logger,
) *Handler {
	h := &Handler{
		facade:     facade,
		staleAfter: staleAfter,
		log:        logger,
		mux:        http.NewServeMux(),
	}

	h.mux.HandleFunc("/", h.handleIndex)
	h.mux.HandleFunc("/api/readings", h.handleReadings)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// writeJSON writes a JSON response, safely encoding values.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleReadings returns the freshness-filtered view of every reading as a
// flat object of reading name to value. The shape is the contract the panel
// frontend renders unchanged.
func (h *Handler) handleReadings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, h.facade.Current(h.staleAfter))
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Keyed by plain strings for the template's index builtin.
	view := make(map[string]string)
	for reading, value := range h.facade.Current(h.staleAfter) {
		view[string(reading)] = value
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if err := panelPage.Execute(w, view); err != nil {
		h.log.Err(r.Context(), err)
	}
}

var panelPage = template.Must(template.New("panel").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>Bedside Monitor</title>
    <style>
        body {font-family: Arial, sans-serif; background:#f7f7f7; color:#222;
              display:flex; flex-direction:column; justify-content:center;
              align-items:center; height:100vh; margin:0;}
        .title {font-size:2em; margin-bottom:30px;}
        .row {display:flex; gap:30px; margin-bottom:30px;}
        .card {background:#fff; border-radius:16px; box-shadow:0 2px 12px #ddd;
               padding:30px 40px; min-width:180px; text-align:center;}
        .value {font-size:2.5em; font-weight:bold; margin-bottom:10px;}
        .label {font-size:1.1em; color:#888;}
        .alert-on  {color:#d32f2f;}
        .alert-off {color:#1976d2;}
    </style>
</head>
<body>
    <div class="title">Bedside Monitor</div>
    <div class="row">
        <div class="card">
            <div id="temperature" class="value">{{index . "temperature"}}</div>
            <div class="label">Temperature (&deg;C)</div>
        </div>
        <div class="card">
            <div id="humidity" class="value">{{index . "humidity"}}</div>
            <div class="label">Humidity (%)</div>
        </div>
        <div class="card">
            <div id="angle" class="value">{{index . "angle"}}</div>
            <div class="label">Bed angle (&deg;)</div>
        </div>
    </div>
    <div class="row">
        <div class="card">
            <div id="alert" class="value {{if eq (index . "alert") "ATIVO"}}alert-on{{else}}alert-off{{end}}">{{index . "alert"}}</div>
            <div class="label">Alert</div>
        </div>
    </div>
    <script>
    function render(readings) {
        for (const name of ["temperature", "humidity", "angle"]) {
            document.getElementById(name).textContent = readings[name];
        }
        const alert = document.getElementById("alert");
        alert.textContent = readings.alert;
        alert.className = "value " + (readings.alert === "ATIVO" ? "alert-on" : "alert-off");
    }
    async function poll() {
        try {
            const resp = await fetch("/api/readings");
            if (resp.ok) {
                render(await resp.json());
            }
        } catch (e) {}
    }
    setInterval(poll, 1500);
    </script>
</body>
</html>
`))
