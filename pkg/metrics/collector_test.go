// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestResourceCollectorCollect(t *testing.T) {
	Enable()

	Goroutines.Set(0)
	MemoryAllocBytes.Set(0)

	collector := NewResourceCollector(context.Background(), time.Second)
	collector.collect()
	collector.Stop()

	if testutil.CollectAndCount(Goroutines) == 0 {
		t.Error("Expected Goroutines to be collecting")
	}
	if testutil.CollectAndCount(MemoryAllocBytes) == 0 {
		t.Error("Expected MemoryAllocBytes to be collecting")
	}
	if testutil.CollectAndCount(ServerUptime) == 0 {
		t.Error("Expected ServerUptime to be collecting")
	}
}

func TestResourceCollectorContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	collector := NewResourceCollector(ctx, time.Second)

	done := make(chan bool)
	go func() {
		collector.Start()
		done <- true
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Collector did not stop after context cancellation")
	}
}

func TestStartResourceCollector(t *testing.T) {
	Enable()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	collector := StartResourceCollector(ctx, 50*time.Millisecond)
	if collector == nil {
		t.Fatal("Expected collector to be created")
	}

	// Wait for at least one collection cycle
	time.Sleep(120 * time.Millisecond)
	collector.Stop()

	if testutil.CollectAndCount(Goroutines) == 0 {
		t.Error("Expected goroutines metric to be collected")
	}
}

func TestCollectOnce(t *testing.T) {
	Enable()

	Goroutines.Set(0)
	CollectOnce()

	if testutil.CollectAndCount(Goroutines) == 0 {
		t.Error("Expected goroutines metric to be collected")
	}
}
