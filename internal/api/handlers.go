package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/reewild/foodprint/internal/carbon"
	"github.com/reewild/foodprint/internal/service"
)

// maxUploadBytes caps multipart image uploads (10 MiB).
const maxUploadBytes = 10 << 20

// NewRouter wires all routes.
func NewRouter(estimator *service.Estimator) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handleHealth)

	r.Post("/api/estimate", handleEstimate(estimator))
	r.Post("/api/estimate/image", handleEstimateImage(estimator))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok")) //nolint:errcheck
}

// --- POST /api/estimate ---

type estimateRequest struct {
	Dish string `json:"dish"`
}

func handleEstimate(estimator *service.Estimator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req estimateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Dish) == "" {
			jsonError(w, "dish is required", http.StatusBadRequest)
			return
		}

		jsonOK(w, estimator.EstimateFromDishName(r.Context(), req.Dish))
	}
}

// --- POST /api/estimate/image ---

func handleEstimateImage(estimator *service.Estimator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

		file, header, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, noFileFallback())
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil || len(data) == 0 {
			writeJSON(w, http.StatusBadRequest, noFileFallback())
			return
		}

		mimeType := header.Header.Get("Content-Type")
		jsonOK(w, estimator.EstimateFromImage(r.Context(), data, mimeType))
	}
}

// noFileFallback is the fallback-shaped 400 body for a missing upload.
func noFileFallback() carbon.Estimate {
	return carbon.Estimate{
		Dish:              "Unknown Dish",
		EstimatedCarbonKg: 1.0,
		Ingredients:       []carbon.Ingredient{{Name: "Unknown", CarbonKg: 1.0}},
		Error:             "No file uploaded",
	}
}

// --- helpers ---

func jsonOK(w http.ResponseWriter, v any) {
	writeJSON(w, http.StatusOK, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}
