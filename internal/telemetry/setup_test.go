package telemetry

import (
	"context"
	"testing"

	"github.com/acme/click-to-call/internal/config"
)

func TestSetupDisabledIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TelemetryConfig{}, "click-to-call")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetupRequiresEndpoint(t *testing.T) {
	if _, err := Setup(context.Background(), config.TelemetryConfig{TracingEnabled: true}, "click-to-call"); err == nil {
		t.Fatalf("expected error without endpoint")
	}
}

func TestSampleRatio(t *testing.T) {
	cases := map[float64]float64{0: 1, -1: 1, 0.25: 0.25, 1: 1, 3: 1}
	for in, want := range cases {
		if got := SampleRatio(in); got != want {
			t.Errorf("SampleRatio(%v) = %v, want %v", in, got, want)
		}
	}
}
