package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/acme/click-to-call/pkg/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const inMemoryConfig = `
app:
  env: test
provider:
  name: mock
storage:
  backend: memory
trunks:
  numbers: ["100", "101"]
  max_channels: 2
`

func TestBuildInMemory(t *testing.T) {
	ctx := context.Background()
	c, err := Build(ctx, writeConfig(t, inMemoryConfig))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer c.Close(ctx)

	if c.Core().Pool.Len() != 2 {
		t.Fatalf("expected two trunks, got %d", c.Core().Pool.Len())
	}
	if n, ok := c.Core().Pool.Available("101"); !ok || n != 2 {
		t.Fatalf("expected trunk 101 with 2 channels, got %d %v", n, ok)
	}
	if c.Services().Call == nil || c.Services().Records == nil {
		t.Fatalf("services not wired")
	}
	if c.Runner() == nil || c.Janitor() == nil {
		t.Fatalf("runner and janitor must be wired")
	}
	if len(c.HealthChecks()) != 0 {
		t.Fatalf("in-memory container has no backing services to ping")
	}
	if c.Redis != nil || c.Kafka != nil || c.Postgres != nil {
		t.Fatalf("no external clients expected")
	}
}

func TestBuildDiscoversTrunks(t *testing.T) {
	ctx := context.Background()
	c, err := Build(ctx, writeConfig(t, inMemoryConfig+"  discover: true\n"))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer c.Close(ctx)

	if c.Core().Pool.Len() != 2 {
		t.Fatalf("expected discovered trunks, got %d", c.Core().Pool.Len())
	}
}

func TestBuildRejectsEmptyPool(t *testing.T) {
	body := `
provider:
  name: mock
storage:
  backend: memory
trunks:
  numbers: []
`
	_, err := Build(context.Background(), writeConfig(t, body))
	if !errors.Is(err, apperrors.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
