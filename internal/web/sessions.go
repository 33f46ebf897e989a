package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/raine/pricebanner/internal/llm"
	"github.com/raine/pricebanner/internal/session"
)

const (
	sessionCookieName = "pricebanner_session"
	// DefaultSessionTTL is how long an idle browser session is kept.
	DefaultSessionTTL = 30 * time.Minute
)

// Sessions maps browser session cookies to controllers. Sessions expire after
// ttl without requests; an expired session's controller is stopped.
type Sessions struct {
	gateway llm.Gateway
	ttl     time.Duration

	mu    sync.Mutex // Serializes lookup and refresh
	cache *cache.Cache
}

// NewSessions creates an empty session registry.
func NewSessions(gateway llm.Gateway, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	s := &Sessions{
		gateway: gateway,
		ttl:     ttl,
		cache:   cache.New(ttl, ttl/2),
	}
	s.cache.OnEvicted(func(id string, v any) {
		if c, ok := v.(*session.Controller); ok {
			log.Info().Str("sessionId", id).Msg("web session expired")
			go c.Stop()
		}
	})
	return s
}

// Controller returns the controller for the request's session, creating a
// new session and setting its cookie when there is none.
func (s *Sessions) Controller(w http.ResponseWriter, r *http.Request) *session.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		if v, found := s.cache.Get(cookie.Value); found {
			// Refresh the idle expiry.
			s.cache.SetDefault(cookie.Value, v)
			return v.(*session.Controller)
		}
	}

	id := uuid.NewString()
	c := session.New(id, s.gateway, nil)
	s.cache.SetDefault(id, c)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	log.Info().Str("sessionId", id).Msg("web session created")
	return c
}

// Count returns the number of live sessions.
func (s *Sessions) Count() int {
	return s.cache.ItemCount()
}

// Close stops every session's controller.
func (s *Sessions) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.cache.Items()
	s.cache.Flush()
	for _, item := range items {
		if c, ok := item.Object.(*session.Controller); ok {
			c.Stop()
		}
	}
}
