package tracing

import (
	"strings"
	"testing"

	"github.com/torosent/streamsim/internal/config"
)

func TestResolveServiceName(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		env        string
		role       string
		want       string
	}{
		{"configured wins", "replay-east", "from-env", "streamsim", "replay-east"},
		{"env before role", " ", "from-env", "streamsim", "from-env"},
		{"role fallback", "", "", "streamsim-consumer", "streamsim-consumer"},
		{"nothing set", "", "", "", "streamsim"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OTEL_SERVICE_NAME", tt.env)
			got := resolveServiceName(config.TracingConfig{ServiceName: tt.configured}, tt.role)
			if got != tt.want {
				t.Errorf("resolveServiceName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveEndpointFallsBackToEnv(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	if got := resolveEndpoint(config.TracingConfig{}); got != "collector:4317" {
		t.Errorf("resolveEndpoint() = %q, want collector:4317", got)
	}
	if got := resolveEndpoint(config.TracingConfig{Endpoint: "local:4318"}); got != "local:4318" {
		t.Errorf("resolveEndpoint() = %q, want local:4318", got)
	}
}

func TestNewSampler(t *testing.T) {
	tests := []struct {
		rate    float64
		root    string
		wantErr bool
	}{
		{rate: 0, root: "AlwaysOffSampler"},
		{rate: 1, root: "AlwaysOnSampler"},
		{rate: 0.25, root: "TraceIDRatioBased{0.25}"},
		{rate: -0.1, wantErr: true},
		{rate: 1.01, wantErr: true},
	}
	for _, tt := range tests {
		s, err := newSampler(tt.rate)
		if tt.wantErr {
			if err == nil {
				t.Errorf("newSampler(%g) succeeded, want error", tt.rate)
			}
			continue
		}
		if err != nil {
			t.Fatalf("newSampler(%g) error = %v", tt.rate, err)
		}
		desc := s.Description()
		if !strings.HasPrefix(desc, "ParentBased{root:"+tt.root) {
			t.Errorf("newSampler(%g) = %s, want parent-based %s root", tt.rate, desc, tt.root)
		}
	}
}
