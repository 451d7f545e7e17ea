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
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsEnabled(t *testing.T) {
	// Metrics should be enabled by default
	if !IsEnabled() {
		t.Error("Expected metrics to be enabled by default")
	}

	// Test disabling
	Disable()
	if IsEnabled() {
		t.Error("Expected metrics to be disabled after Disable()")
	}

	// Test enabling
	Enable()
	if !IsEnabled() {
		t.Error("Expected metrics to be enabled after Enable()")
	}
}

func TestRecordOperation(t *testing.T) {
	Enable()

	// Reset counters before test
	OperationsTotal.Reset()
	OperationDuration.Reset()

	// Record a successful operation
	RecordOperation(OpRegisterResponse, StatusSuccess, 0.5)

	// Verify counter incremented
	count := testutil.CollectAndCount(OperationsTotal)
	if count != 1 {
		t.Errorf("Expected 1 operation recorded, got %d", count)
	}

	// Verify histogram updated
	histCount := testutil.CollectAndCount(OperationDuration)
	if histCount != 1 {
		t.Errorf("Expected 1 histogram sample, got %d", histCount)
	}

	// Record an error operation
	RecordOperation(OpSignInResponse, StatusError, 0.1)

	// Verify counter incremented again
	count = testutil.CollectAndCount(OperationsTotal)
	if count != 2 {
		t.Errorf("Expected 2 operations recorded, got %d", count)
	}
}

func TestRecordOperationWhenDisabled(t *testing.T) {
	Disable()
	defer Enable()

	// Reset counters
	OperationsTotal.Reset()

	// Record operation while disabled
	RecordOperation(OpRegisterRequest, StatusSuccess, 0.5)

	// Verify nothing was recorded
	count := testutil.CollectAndCount(OperationsTotal)
	if count != 0 {
		t.Errorf("Expected 0 operations when disabled, got %d", count)
	}
}

func TestRecordError(t *testing.T) {
	Enable()

	// Reset counters
	ErrorsTotal.Reset()

	// Record an error
	RecordError(OpRegisterResponse, "invalid_challenge")

	// Verify counter incremented
	count := testutil.CollectAndCount(ErrorsTotal)
	if count != 1 {
		t.Errorf("Expected 1 error recorded, got %d", count)
	}

	// Record another error
	RecordError(OpSignInResponse, "assertion_failed")

	// Verify counter incremented again
	count = testutil.CollectAndCount(ErrorsTotal)
	if count != 2 {
		t.Errorf("Expected 2 errors recorded, got %d", count)
	}
}

func TestRecordCeremonyMetrics(t *testing.T) {
	Enable()

	ChallengesIssued.Reset()
	CeremoniesVerified.Reset()

	RecordChallengeIssued(CeremonyRegistration)
	RecordChallengeIssued(CeremonyAuthentication)

	count := testutil.CollectAndCount(ChallengesIssued)
	if count != 2 {
		t.Errorf("Expected 2 challenge series, got %d", count)
	}

	RecordCeremonyVerified(CeremonyAuthentication, StatusSuccess)
	RecordCeremonyVerified(CeremonyAuthentication, StatusError)

	count = testutil.CollectAndCount(CeremoniesVerified)
	if count != 2 {
		t.Errorf("Expected 2 ceremony series, got %d", count)
	}
}

func TestRecordCloneWarning(t *testing.T) {
	Enable()

	before := testutil.ToFloat64(CloneWarnings)
	RecordCloneWarning()
	after := testutil.ToFloat64(CloneWarnings)

	if after != before+1 {
		t.Errorf("Expected clone warnings to advance by 1, got %f -> %f", before, after)
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	Enable()

	// Reset metrics
	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()

	// Record HTTP request
	RecordHTTPRequest("GET", "200", 0.05)

	// Verify metrics recorded
	count := testutil.CollectAndCount(HTTPRequestsTotal)
	if count != 1 {
		t.Errorf("Expected 1 HTTP request recorded, got %d", count)
	}

	histCount := testutil.CollectAndCount(HTTPRequestDuration)
	if histCount != 1 {
		t.Errorf("Expected 1 HTTP histogram sample, got %d", histCount)
	}
}

func TestActiveConnections(t *testing.T) {
	Enable()

	IncrementActiveConnections()
	IncrementActiveConnections()
	DecrementActiveConnections()

	count := testutil.CollectAndCount(ActiveConnections)
	if count == 0 {
		t.Error("Expected active connections to be tracked")
	}
}

func TestSetCredentialsTotal(t *testing.T) {
	Enable()

	SetCredentialsTotal(10)

	count := testutil.CollectAndCount(CredentialsTotal)
	if count == 0 {
		t.Error("Expected credentials total to be tracked")
	}
}

func TestOperationConstants(t *testing.T) {
	// Verify operation constants are defined
	operations := []string{
		OpRegisterRequest, OpRegisterResponse,
		OpSignInRequest, OpSignInResponse,
		OpHealthCheck,
	}

	for _, op := range operations {
		if op == "" {
			t.Error("Operation constant is empty")
		}
	}
}

func TestMetricsNamespace(t *testing.T) {
	if Namespace != "passkey" {
		t.Errorf("Expected namespace 'passkey', got '%s'", Namespace)
	}
}

func TestResourceGauges(t *testing.T) {
	Enable()

	// Verify all resource gauges can be set without panicking
	Goroutines.Set(100)
	MemoryAllocBytes.Set(1024 * 1024)
	MemorySysBytes.Set(10 * 1024 * 1024)
	GCPauseTotalSeconds.Set(0.5)
	ServerUptime.Set(3600)

	// Verify gauges are collecting
	collectors := []prometheus.Collector{
		Goroutines, MemoryAllocBytes, MemorySysBytes,
		GCPauseTotalSeconds, ServerUptime,
	}

	for _, collector := range collectors {
		count := testutil.CollectAndCount(collector)
		if count == 0 {
			t.Errorf("Expected gauge %v to be collecting", collector)
		}
	}
}

func TestConcurrentMetricUpdates(t *testing.T) {
	Enable()

	// Reset metrics
	OperationsTotal.Reset()

	// Concurrently record operations
	done := make(chan bool)
	operations := 100

	for i := 0; i < operations; i++ {
		go func() {
			RecordOperation(OpSignInResponse, StatusSuccess, 0.1)
			done <- true
		}()
	}

	// Wait for all goroutines
	for i := 0; i < operations; i++ {
		<-done
	}

	count := testutil.CollectAndCount(OperationsTotal)
	if count == 0 {
		t.Error("Expected operations to be recorded concurrently")
	}
}

func BenchmarkRecordOperation(b *testing.B) {
	Enable()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		RecordOperation(OpSignInResponse, StatusSuccess, 0.001)
	}
}

func BenchmarkRecordHTTPRequest(b *testing.B) {
	Enable()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		RecordHTTPRequest("GET", "200", 0.001)
	}
}
