package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/raine/pricebanner/internal/session"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 16

type searchRequest struct {
	Barcode     string `json:"barcode"`
	ProductName string `json:"productName"`
}

type inputRequest struct {
	Value string `json:"value"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// RegisterRoutes mounts the session API under /api on the given router.
func RegisterRoutes(r chi.Router, sessions *Sessions) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/state", handleState(sessions))
		r.Post("/search", handleSearch(sessions))
		r.Put("/inputs/{field}", handleInput(sessions))
		r.Post("/tags", handleTags(sessions))
		r.Post("/banner", handleBanner(sessions))
	})
}

func handleState(sessions *Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := sessions.Controller(w, r)
		writeJSON(w, http.StatusOK, c.State())
	}
}

func handleSearch(sessions *Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		if !decodeBody(w, r, &req) {
			return
		}
		c := sessions.Controller(w, r)
		writeAction(w, r, c, c.Search(req.Barcode, req.ProductName))
	}
}

func handleInput(sessions *Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		field, ok := session.ParseField(chi.URLParam(r, "field"))
		if !ok {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown field"})
			return
		}
		var req inputRequest
		if !decodeBody(w, r, &req) {
			return
		}

		c := sessions.Controller(w, r)
		status := http.StatusOK
		if !c.SetInput(field, req.Value) {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, c.State())
	}
}

func handleTags(sessions *Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := sessions.Controller(w, r)
		writeAction(w, r, c, c.GenerateTags())
	}
}

func handleBanner(sessions *Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := sessions.Controller(w, r)
		writeAction(w, r, c, c.GenerateBanner())
	}
}

// writeAction answers an action request with the state snapshot taken right
// after the action was accepted or rejected.
func writeAction(w http.ResponseWriter, r *http.Request, c *session.Controller, err error) {
	var ve *session.ValidationError
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, c.State())
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, c.State())
	default:
		hlog.FromRequest(r).Error().Err(err).Str("sessionId", c.ID()).Msg("action not dispatched")
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "session is closed"})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
