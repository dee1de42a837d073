package db

import (
	"testing"

	"github.com/gocql/gocql"

	"github.com/acme/click-to-call/internal/config"
)

func TestDSN(t *testing.T) {
	got := DSN(config.PostgresConfig{Host: "db", Port: 5432, User: "calls", Password: "p@ss", Database: "clicktocall"})
	want := "postgres://calls:p%40ss@db:5432/clicktocall?sslmode=disable"
	if got != want {
		t.Fatalf("unexpected dsn %q, want %q", got, want)
	}
}

func TestParseConsistency(t *testing.T) {
	cases := map[string]gocql.Consistency{
		"one":          gocql.One,
		"local_quorum": gocql.LocalQuorum,
		"quorum":       gocql.Quorum,
		"bogus":        gocql.Quorum,
	}
	for in, want := range cases {
		if got := ParseConsistency(in); got != want {
			t.Errorf("%s: got %v, want %v", in, got, want)
		}
	}
}

func TestNewScyllaRequiresHosts(t *testing.T) {
	if _, err := NewScylla(config.ScyllaConfig{}); err == nil {
		t.Fatalf("expected error without hosts")
	}
}
