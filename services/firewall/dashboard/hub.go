// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package dashboard fans pipeline stage events out to connected
// dashboard clients over WebSocket.
package dashboard

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianShield/services/firewall/datatypes"
)

// Hub broadcasts stage events to every connected client.
//
// # Description
//
// Clients register a buffered channel; Broadcast is non-blocking, a
// client that cannot keep up loses events rather than stalling the
// publisher. The hub never blocks the pipeline.
//
// # Thread Safety
//
// Safe for concurrent use.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan datatypes.StageEvent]struct{}
	log     *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		clients: make(map[chan datatypes.StageEvent]struct{}),
		log:     log,
	}
}

// Subscribe registers a new client and returns its event channel plus an
// unsubscribe function. The channel is closed on unsubscribe.
func (h *Hub) Subscribe() (<-chan datatypes.StageEvent, func()) {
	ch := make(chan datatypes.StageEvent, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.clients, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsubscribe
}

// Broadcast delivers one event to every subscriber, dropping it for
// clients whose buffer is full.
func (h *Hub) Broadcast(event datatypes.StageEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.clients {
		select {
		case ch <- event:
		default:
		}
	}
}

// Clients returns the current subscriber count.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeConn pumps a subscription onto one WebSocket connection until the
// subscription or the connection ends. Blocks; run per connection.
func (h *Hub) ServeConn(conn *websocket.Conn) {
	events, unsubscribe := h.Subscribe()
	defer unsubscribe()

	for event := range events {
		if err := conn.WriteJSON(event); err != nil {
			h.log.Info("dashboard client disconnected", "error", err)
			return
		}
	}
}
