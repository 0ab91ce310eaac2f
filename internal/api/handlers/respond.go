package handlers

import (
	"encoding/json"
	"net/http"
)

// ErrorBody error envelope shared by handlers and router middleware
type ErrorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// respondJSON writes a JSON body; gate decisions are never cacheable
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorBody{Error: message, Status: status})
}

// WriteError writes an ErrorBody outside a handler (404, panic recovery)
func WriteError(w http.ResponseWriter, status int, message string) {
	respondError(w, status, message)
}
