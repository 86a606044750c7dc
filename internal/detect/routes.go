package detect

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the detection API endpoints on the given router.
func RegisterRoutes(r chi.Router, co *Coordinator) {
	r.Post("/api/detect", detectHandler(co))
	r.Get("/api/detect/{component}", detectOneHandler(co))
}

func detectHandler(co *Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Targets []string `json:"targets"`
		}
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
				return
			}
		}

		res := co.Detect(r.Context(), req.Targets)
		writeJSON(w, http.StatusOK, res)
	}
}

func detectOneHandler(co *Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		component := chi.URLParam(r, "component")
		if component == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "component is required"})
			return
		}
		res := co.Detect(r.Context(), []string{component})
		writeJSON(w, http.StatusOK, res)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
