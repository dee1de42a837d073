package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	apperrors "github.com/acme/click-to-call/pkg/errors"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeFile(t, `
provider:
  name: zadarma
  key: k
  secret: s
trunks:
  numbers: ["100"]
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Trunks.MaxChannels != 3 {
		t.Errorf("max_channels default: got %d", cfg.Trunks.MaxChannels)
	}
	if cfg.Trunks.AcquirePollInterval != 5*time.Second {
		t.Errorf("acquire poll default: got %s", cfg.Trunks.AcquirePollInterval)
	}
	if cfg.Recording.Cooldown != time.Minute {
		t.Errorf("cooldown default: got %s", cfg.Recording.Cooldown)
	}
	if cfg.Storage.Backend != "postgres" || cfg.HTTP.Port != 5000 {
		t.Errorf("unexpected defaults %+v %+v", cfg.Storage, cfg.HTTP)
	}
	if cfg.Kafka.CallCompletedTopic != "call_completed" {
		t.Errorf("topic default: got %q", cfg.Kafka.CallCompletedTopic)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CLICKCALL_TRUNKS_MAX_CHANNELS", "7")
	t.Setenv("CLICKCALL_RECORDING_COOLDOWN", "5s")
	cfg, err := Load(writeFile(t, `
provider:
  name: mock
trunks:
  numbers: ["100"]
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Trunks.MaxChannels != 7 {
		t.Fatalf("expected env override, got %d", cfg.Trunks.MaxChannels)
	}
	if cfg.Recording.Cooldown != 5*time.Second {
		t.Fatalf("expected cooldown override, got %s", cfg.Recording.Cooldown)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Provider: ProviderConfig{Name: "mock"},
			Trunks:   TrunksConfig{Numbers: []string{"100"}, MaxChannels: 1},
			Storage:  StorageConfig{Backend: "memory"},
		}
	}

	cases := map[string]func(*Config){
		"zero capacity":    func(c *Config) { c.Trunks.MaxChannels = 0 },
		"empty pool":       func(c *Config) { c.Trunks.Numbers = nil },
		"missing secret":   func(c *Config) { c.Provider = ProviderConfig{Name: "zadarma", Key: "k"} },
		"unknown provider": func(c *Config) { c.Provider.Name = "twilio" },
		"unknown storage":  func(c *Config) { c.Storage.Backend = "mysql" },
		"unknown timezone": func(c *Config) { c.Provider.Timezone = "Mars/Olympus" },
	}
	for name, mutate := range cases {
		cfg := base()
		mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, apperrors.ErrConfiguration) {
			t.Errorf("%s: expected configuration error, got %v", name, err)
		}
	}

	cfg := base()
	cfg.Trunks.Numbers = nil
	cfg.Trunks.Discover = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("discovery allows an empty static list: %v", err)
	}
}

func TestLoadProviderTimezone(t *testing.T) {
	cfg, err := Load(writeFile(t, `
provider:
  name: mock
  timezone: Europe/Moscow
trunks:
  numbers: ["100"]
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	loc, err := cfg.Provider.Location()
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	local := time.Date(2024, 3, 5, 15, 0, 0, 0, loc)
	if !local.Equal(time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected zone offset for %s", loc)
	}

	if loc, _ := (ProviderConfig{}).Location(); loc != time.UTC {
		t.Fatalf("empty timezone must resolve to UTC, got %s", loc)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for a missing file")
	}
}
