package httpx

import (
	"encoding/json"
	"net/http"
)

// TppMessage is one entry of the XS2A error body.
type TppMessage struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Path     string `json:"path,omitempty"`
	Text     string `json:"text,omitempty"`
}

// ErrorBody is the XS2A error response document.
type ErrorBody struct {
	TppMessages []TppMessage `json:"tppMessages"`
}

// WriteJSON writes a JSON response with the given status code.
// It automatically sets the Content-Type header and Cache-Control headers.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteTppError writes a single ERROR category tppMessage.
func WriteTppError(w http.ResponseWriter, status int, code, text string) {
	WriteJSON(w, status, ErrorBody{TppMessages: []TppMessage{{
		Category: "ERROR",
		Code:     code,
		Text:     text,
	}}})
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
