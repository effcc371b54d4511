package health

import (
	"context"
	"errors"
	"testing"
)

type mockPinger struct{ err error }

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

type mockChecker struct{ err error }

func (m *mockChecker) HealthCheck(_ context.Context) error { return m.err }

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockPinger{}, &mockChecker{}, &mockChecker{})

	report := svc.Check(context.Background())

	if report.Status != Healthy {
		t.Errorf("status = %q, want %q", report.Status, Healthy)
	}
	for _, name := range []string{"cache", "embedding", "chain"} {
		if report.Checks[name] != CheckOK {
			t.Errorf("check %q = %q, want ok", name, report.Checks[name])
		}
	}
}

func TestCheck_DegradedOnFailure(t *testing.T) {
	tests := []struct {
		name    string
		db      error
		emb     error
		chain   error
		failing string
	}{
		{name: "cache down", db: errors.New("refused"), failing: "cache"},
		{name: "embedding down", emb: errors.New("timeout"), failing: "embedding"},
		{name: "chain down", chain: errors.New("rpc error"), failing: "chain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := New(&mockPinger{err: tt.db}, &mockChecker{err: tt.emb}, &mockChecker{err: tt.chain})

			report := svc.Check(context.Background())

			if report.Status != Degraded {
				t.Errorf("status = %q, want %q", report.Status, Degraded)
			}
			if report.Checks[tt.failing] != CheckError {
				t.Errorf("check %q = %q, want error", tt.failing, report.Checks[tt.failing])
			}
		})
	}
}

func TestCheck_NilComponentsSkipped(t *testing.T) {
	svc := New(nil, &mockChecker{}, nil)

	report := svc.Check(context.Background())

	if report.Status != Healthy {
		t.Errorf("status = %q, want %q", report.Status, Healthy)
	}
	if len(report.Checks) != 1 {
		t.Errorf("checks = %v, want embedding only", report.Checks)
	}
	if _, ok := report.Checks["cache"]; ok {
		t.Error("nil cache should not be reported")
	}
}
