// Package assistant proxies a fixed study prompt to an LLM.
package assistant

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
)

const (
	maxRequestBytes     = 1 << 16
	generateFailedError = "failed to generate a response"
)

// Request is the accepted body of an assistant call. The body may be empty.
type Request struct{}

type Response struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Handler returns an http.HandlerFunc that sends prompt to completer once per request.
func Handler(completer Completer, prompt string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := decodeRequest(r); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}

		message, err := completer.Complete(r.Context(), prompt)
		if err != nil {
			log.Err(err).Msg("[Assistant] completion failed")
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: generateFailedError})
			return
		}

		writeJSON(w, http.StatusOK, Response{Message: message})
	}
}

func decodeRequest(r *http.Request) (Request, error) {
	var req Request
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return req, nil
		}
		return req, errors.New("invalid request body")
	}
	if decoder.More() {
		return req, errors.New("invalid request body")
	}
	return req, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
