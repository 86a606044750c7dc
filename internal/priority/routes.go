package priority

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"toolscan/internal/detect"
)

// RegisterRoutes mounts the prioritization API endpoints on the given
// router. Candidates come from a fresh (cache-first) detection pass.
func RegisterRoutes(r chi.Router, p *Prioritizer, co *detect.Coordinator) {
	r.Post("/api/prioritize", prioritizeHandler(p, co))
}

type prioritizeRequest struct {
	Components map[string]string `json:"components"` // name -> required version ("" = none)
}

func prioritizeHandler(p *Prioritizer, co *detect.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req prioritizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
			return
		}
		if len(req.Components) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "components is required"})
			return
		}

		names := make([]string, 0, len(req.Components))
		for name := range req.Components {
			names = append(names, name)
		}
		sort.Strings(names)
		detection := co.Detect(r.Context(), names)

		byName := make(map[string][]detect.Candidate)
		for _, c := range detection.Applications {
			byName[c.Name] = append(byName[c.Name], c)
		}

		var reqs []Request
		for _, name := range names {
			logical := detect.NormalizeName(name, nil)
			reqs = append(reqs, Request{
				Component:       logical,
				RequiredVersion: req.Components[name],
				Candidates:      byName[logical],
			})
		}

		report := p.PrioritizeAll(reqs)
		report.Warnings = append(report.Warnings, detection.Warnings...)
		report.Errors = append(report.Errors, detection.Errors...)
		writeJSON(w, http.StatusOK, report)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
