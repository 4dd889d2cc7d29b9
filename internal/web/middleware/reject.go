package middleware

import (
	"encoding/json"
	"net/http"
)

type rejection struct {
	Error    string   `json:"error"`
	Message  string   `json:"message"`
	Code     string   `json:"code"`
	Warnings []string `json:"warnings"`
}

// writeReject writes the same JSON error shape as the web package.
func writeReject(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rejection{Error: message, Message: message, Code: code, Warnings: []string{}})
}
