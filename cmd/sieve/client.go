// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
)

// defaultHTTPClient is the package-level HTTP client used by remote commands.
var defaultHTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}

// apiClient provides HTTP access to a running sieve server.
type apiClient struct {
	baseURL string
	http    *http.Client
}

// newAPIClient creates a client targeting the given host:port address.
func newAPIClient(addr string) *apiClient {
	return &apiClient{
		baseURL: "http://" + addr,
		http:    defaultHTTPClient,
	}
}

// getJSON performs a GET request and decodes the JSON response into dest.
func (c *apiClient) getJSON(path string, dest any) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return c.transportError(err)
	}
	return decodeResponse(resp, dest)
}

// postJSON sends body as JSON and decodes the JSON response into dest.
func (c *apiClient) postJSON(path string, body, dest any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return sieveerr.Errorf(sieveerr.CodeCLIInputInvalid, "encoding request: %w", err)
	}
	resp, err := c.http.Post(c.baseURL+path, "application/json", bytes.NewReader(raw))
	if err != nil {
		return c.transportError(err)
	}
	return decodeResponse(resp, dest)
}

func (c *apiClient) transportError(err error) error {
	if isDialError(err) {
		return sieveerr.New(sieveerr.CodeCLIServerNotRunning, "server is not running (connection refused)",
			sieveerr.Field("url", c.baseURL))
	}
	return sieveerr.Errorf(sieveerr.CodeCLIRequestFailure, "request failed: %w", err)
}

// problem is the subset of a huma error response the CLI reports.
type problem struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func decodeResponse(resp *http.Response, dest any) error {
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		var p problem
		msg := string(body)
		if json.Unmarshal(body, &p) == nil && p.Detail != "" {
			msg = p.Detail
		}
		return sieveerr.New(sieveerr.CodeCLIRequestFailure, "server returned an error: "+msg,
			sieveerr.Field("status", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return sieveerr.Errorf(sieveerr.CodeCLIResponseInvalid, "invalid response: %w", err)
	}
	return nil
}

// isDialError returns true if err is a net dial error (connection refused, etc.).
func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}
