// Package api exposes sync engines over HTTP and provides the matching client.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/klauern/docsync/internal/logging"
	"github.com/klauern/docsync/internal/model"
	docsync "github.com/klauern/docsync/internal/sync"
)

const (
	// SyncPath receives sync requests.
	SyncPath = "/-/sync2/"
	// ClonePath serves a package snapshot, selected by the package query
	// parameter.
	ClonePath = "/-/clone/"
	// PackagesPath lists the packages of the remote.
	PackagesPath = "/-/packages/"
	// HealthPath answers liveness probes.
	HealthPath = "/-/health"
)

// Envelope wraps every response body.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		logging.Warn("failed to write response", logging.Err(err))
	}
}

func writeOK(w http.ResponseWriter, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: raw})
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), Envelope{Success: false, Message: err.Error()})
}

func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, model.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, docsync.ErrUnknownPackage):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
