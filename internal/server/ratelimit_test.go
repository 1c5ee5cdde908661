// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sigil-dev/sieve/internal/server"
	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestRateLimitConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     server.RateLimitConfig
		wantErr bool
	}{
		{"disabled", server.RateLimitConfig{}, false},
		{"enabled", server.RateLimitConfig{RequestsPerSecond: 10, Burst: 20}, false},
		{"negative rate", server.RateLimitConfig{RequestsPerSecond: -1}, true},
		{"rate without burst", server.RateLimitConfig{RequestsPerSecond: 10}, true},
		{"negative visitors", server.RateLimitConfig{RequestsPerSecond: 10, Burst: 1, MaxVisitors: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, sieveerr.HasCode(err, sieveerr.CodeServerConfigInvalid))
				return
			}
			require.NoError(t, err)
		})
	}

	cfg := server.RateLimitConfig{RequestsPerSecond: 1, Burst: 1}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10000, cfg.MaxVisitors)
}

func TestRateLimit_PerIP(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	srv, err := server.New(server.Config{
		ListenAddr: "127.0.0.1:0",
		RateLimit:  server.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2},
	})
	require.NoError(t, err)
	defer func() { _ = srv.Close() }()

	hit := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, hit("10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.1:1001"), "same IP, different port shares the bucket")
	assert.Equal(t, http.StatusTooManyRequests, hit("10.0.0.1:1002"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.2:1000"), "other IPs have their own bucket")
}

func TestRateLimit_DisabledByDefault(t *testing.T) {
	srv := newTestServer(t)
	for range 50 {
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
}
