package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"quantlab/internal/model"
)

// setCORS sets CORS headers for REST endpoints.
func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	setCORS(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode response: %v", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// writeError maps the computation core's error taxonomy onto HTTP statuses:
// malformed input and bad configuration are 400, structurally valid input the
// computation cannot serve (series shorter than the requested window) is 422.
func writeError(w http.ResponseWriter, err error) {
	var (
		cfgErr    *model.InvalidConfigError
		seriesErr *model.InvalidSeriesError
		dataErr   *model.InsufficientDataError
	)
	switch {
	case errors.As(err, &dataErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: dataErr.Error()})
	case errors.As(err, &cfgErr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: cfgErr.Error(), Field: cfgErr.Field})
	case errors.As(err, &seriesErr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: seriesErr.Error()})
	default:
		log.Printf("[api] internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}
