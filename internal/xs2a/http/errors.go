package http

import (
	"net/http"

	"github.com/aussiebroadwan/xs2a/internal/xs2a/domain"
	"github.com/aussiebroadwan/xs2a/pkg/httpx"
)

// writeError renders err as a tppMessages document with the status of its
// error type.
func writeError(w http.ResponseWriter, err error, service domain.ServiceType) {
	writeErrorHolder(w, domain.AsErrorHolder(err, service))
}

func writeErrorHolder(w http.ResponseWriter, h *domain.ErrorHolder) {
	body := httpx.ErrorBody{TppMessages: make([]httpx.TppMessage, 0, len(h.Messages))}
	for _, m := range h.Messages {
		body.TppMessages = append(body.TppMessages, httpx.TppMessage{
			Category: string(m.Category),
			Code:     string(m.Code),
			Path:     m.Path,
			Text:     m.Text,
		})
	}

	status := h.ErrorType.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	httpx.WriteJSON(w, status, body)
}

func writeFormatError(w http.ResponseWriter, service domain.ServiceType, text string) {
	writeErrorHolder(w, domain.ValidationError(service, domain.CodeFormatError, text))
}
