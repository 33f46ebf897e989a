package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateGeminiKey(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("key") {
		case "good":
			w.Write([]byte(`{"models": []}`))
		case "down":
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error": {"message": "API key not valid."}}`))
		}
	}))
	defer ts.Close()

	assert.NoError(t, validateGeminiKey(ts.URL, "good"))
	assert.EqualError(t, validateGeminiKey(ts.URL, "bad"), "API key not valid.")
	assert.EqualError(t, validateGeminiKey(ts.URL, "down"), "unexpected response (HTTP 503)")
}

func TestValidateTelegramToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/bot123:good/getMe" {
			w.Write([]byte(`{"ok": true, "result": {"id": 1}}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"ok": false, "description": "Unauthorized"}`))
	}))
	defer ts.Close()

	assert.NoError(t, validateTelegramToken(ts.URL, "123:good"))
	assert.EqualError(t, validateTelegramToken(ts.URL, "123:bad"), "Unauthorized")
}

func TestValidate_ConnectionFailure(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	assert.EqualError(t, validateGeminiKey(url, "k"), "connection failed - check your internet")
	assert.EqualError(t, validateTelegramToken(url, "t"), "connection failed - check your internet")
}
