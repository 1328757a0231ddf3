// Package handlers implements the JSON admin API and the public WhatsApp
// webhook.
package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"
)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

func validDate(s string) bool {
	return datePattern.MatchString(s)
}
