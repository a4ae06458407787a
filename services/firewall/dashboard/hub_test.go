// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dashboard

import (
	"testing"

	"github.com/AleutianAI/AleutianShield/services/firewall/datatypes"
)

func TestHub_BroadcastReachesSubscribers(t *testing.T) {
	hub := NewHub(nil)

	first, unsubFirst := hub.Subscribe()
	second, unsubSecond := hub.Subscribe()
	defer unsubFirst()
	defer unsubSecond()

	if hub.Clients() != 2 {
		t.Fatalf("clients = %d, want 2", hub.Clients())
	}

	hub.Broadcast(datatypes.StageEvent{Stage: datatypes.StageAnalysis})

	for i, ch := range []<-chan datatypes.StageEvent{first, second} {
		select {
		case event := <-ch:
			if event.Stage != datatypes.StageAnalysis {
				t.Errorf("subscriber %d got stage %q", i, event.Stage)
			}
		default:
			t.Errorf("subscriber %d received nothing", i)
		}
	}
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub(nil)
	events, unsubscribe := hub.Subscribe()
	unsubscribe()
	unsubscribe() // idempotent

	if _, open := <-events; open {
		t.Error("channel still open after unsubscribe")
	}
	if hub.Clients() != 0 {
		t.Errorf("clients = %d, want 0", hub.Clients())
	}

	// Broadcasting with no subscribers must not panic.
	hub.Broadcast(datatypes.StageEvent{Stage: datatypes.StageAudit})
}

func TestHub_SlowClientDropsEvents(t *testing.T) {
	hub := NewHub(nil)
	_, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	// Fill past the buffer; Broadcast must never block.
	for i := 0; i < 200; i++ {
		hub.Broadcast(datatypes.StageEvent{Stage: datatypes.StageLLM})
	}
}
