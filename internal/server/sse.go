// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

// sseKeepAlive is how often an idle stream sends a comment line.
var sseKeepAlive = 15 * time.Second

func (s *Server) registerSSERoute() {
	s.router.Get("/api/v1/snapshot/stream", s.handleSnapshotStream)

	// The stream needs raw http.ResponseWriter access, so it is served by the
	// chi route above and only described here.
	s.api.OpenAPI().AddOperation(&huma.Operation{
		OperationID: "snapshot-stream",
		Method:      http.MethodGet,
		Path:        "/api/v1/snapshot/stream",
		Summary:     "Stream snapshot notifications via SSE",
		Description: "Emits snapshot.published and snapshot.superseded events as branches change.",
		Tags:        []string{"snapshot"},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Server-sent event stream",
				Content: map[string]*huma.MediaType{
					"text/event-stream": {
						Schema: &huma.Schema{
							Type:        "string",
							Description: "One event per notification; data is the notification as JSON",
						},
					},
				},
			},
			"500": {Description: "Streaming not supported by the connection"},
		},
	})
}

func (s *Server) handleSnapshotStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, `{"error":"streaming not supported"}`, http.StatusInternalServerError)
		return
	}

	events, cancel := s.services.snapshots.Subscribe(16)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case n, open := <-events:
			if !open {
				return
			}
			data, err := json.Marshal(n)
			if err != nil {
				s.services.logger.Error("encoding snapshot notification", slog.Any("error", err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", n.Kind, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
