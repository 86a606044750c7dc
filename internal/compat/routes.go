package compat

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the compatibility API endpoints on the given router.
func RegisterRoutes(r chi.Router, e *Engine) {
	r.Post("/api/compat/check", checkHandler(e))
	r.Post("/api/compat/report", reportHandler(e))
}

type checkRequest struct {
	ComponentA string `json:"component_a"`
	VersionA   string `json:"version_a"`
	ComponentB string `json:"component_b"`
	VersionB   string `json:"version_b"`
	Platform   string `json:"platform,omitempty"`
}

func checkHandler(e *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req checkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
			return
		}
		if req.ComponentA == "" || req.ComponentB == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "component_a and component_b are required"})
			return
		}

		level := e.CheckPair(req.ComponentA, req.VersionA, req.ComponentB, req.VersionB, req.Platform)
		writeJSON(w, http.StatusOK, map[string]Level{"level": level})
	}
}

type reportRequest struct {
	Installed map[string]string `json:"installed"` // name -> version
	Platform  string            `json:"platform,omitempty"`
}

func reportHandler(e *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
			return
		}
		if len(req.Installed) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "installed is required"})
			return
		}

		writeJSON(w, http.StatusOK, e.Evaluate(req.Installed, req.Platform))
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
