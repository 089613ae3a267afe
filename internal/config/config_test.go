package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pgmesh.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validYAML = `
database: meshdb
tables: [t1, t2]
clusters:
  - name: pg-a
    host: pg-a.db.svc
    credential: main
  - name: pg-b
    host: pg-b.db.svc
    port: 5433
    credential: main
credentials:
  main:
    user: repl
    password: env:PGMESH_TEST_PASS
`

func TestLoad_Valid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database != "meshdb" || len(cfg.Clusters) != 2 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	// defaults
	if cfg.Readiness.Interval != 2*time.Second {
		t.Fatalf("readiness interval default = %v", cfg.Readiness.Interval)
	}
	if cfg.Daemon.Addr != ":8080" || cfg.Lock.Key != "pgmesh:runlock" {
		t.Fatalf("daemon/lock defaults: %+v", cfg.Daemon)
	}
	if cfg.ReferenceTable() != "t1" {
		t.Fatalf("reference table = %q", cfg.ReferenceTable())
	}
}

func TestResolveClusters_EnvCredential(t *testing.T) {
	t.Setenv("PGMESH_TEST_PASS", "s3cret")
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatal(err)
	}
	clusters, err := cfg.ResolveClusters()
	if err != nil {
		t.Fatalf("ResolveClusters: %v", err)
	}
	if clusters[0].Cred.Password != "s3cret" || clusters[0].Cred.User != "repl" {
		t.Fatalf("credential not resolved: %+v", clusters[0].Cred)
	}
	if clusters[1].Port != 5433 || clusters[1].Database != "meshdb" {
		t.Fatalf("cluster fields: %+v", clusters[1])
	}
}

func TestResolveClusters_MissingEnv(t *testing.T) {
	os.Unsetenv("PGMESH_TEST_PASS")
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cfg.ResolveClusters(); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"no clusters": `database: x`,
		"no host": `
clusters:
  - name: a
    credential: main
credentials:
  main: {user: u}
`,
		"unknown credential": `
clusters:
  - name: a
    host: h
    credential: nope
credentials:
  main: {user: u}
`,
		"node name collision": `
clusters:
  - name: pg-a
    host: h1
    credential: main
  - name: PG_A
    host: h2
    credential: main
credentials:
  main: {user: u}
`,
		"lock without redis": `
clusters:
  - name: a
    host: h
    credential: main
credentials:
  main: {user: u}
lock:
  enabled: true
`,
	}
	for name, body := range cases {
		if _, err := Load(writeConfig(t, body)); !errors.Is(err, ErrConfiguration) {
			t.Fatalf("%s: expected ErrConfiguration, got %v", name, err)
		}
	}
}
