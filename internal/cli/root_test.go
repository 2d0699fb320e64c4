package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "servers.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

const testManifest = `version: "1"
settings:
  pollInterval: 5s
  probeTimeout: 2s
servers:
  - name: web
    url: http://localhost:3000
    command: npm run dev
    group: frontend
  - name: api
    url: http://localhost:8080
    command: make serve
`

func TestNewRootCommandRegistersSubcommands(t *testing.T) {
	root, _ := newRootCommand()

	expected := []string{"status", "start", "stop", "restart", "add", "remove", "scan", "serve", "tui", "config"}
	registered := make(map[string]bool)
	for _, cmd := range root.Commands() {
		registered[cmd.Name()] = true
	}
	for _, name := range expected {
		if !registered[name] {
			t.Errorf("expected %q subcommand to be registered", name)
		}
	}
}

func TestRootDefaultManifestPath(t *testing.T) {
	root, ctx := newRootCommand()

	flag := root.PersistentFlags().Lookup("file")
	if flag == nil {
		t.Fatalf("expected --file flag")
	}
	if flag.DefValue != "servers.yaml" {
		t.Fatalf("expected default manifest servers.yaml, got %q", flag.DefValue)
	}
	if *ctx.manifestPath != "servers.yaml" {
		t.Fatalf("expected context to share the flag value, got %q", *ctx.manifestPath)
	}
}

func TestStatusCommandListsServers(t *testing.T) {
	path := writeManifest(t, testManifest)

	root, _ := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"status", "-f", path})

	if err := root.Execute(); err != nil {
		t.Fatalf("status failed: %v", err)
	}

	output := out.String()
	for _, want := range []string{"web", "api", "frontend", "http://localhost:3000", "Manifest:"} {
		if !bytes.Contains(out.Bytes(), []byte(want)) {
			t.Errorf("expected status output to contain %q, got:\n%s", want, output)
		}
	}
}

func TestConfigLintValidManifest(t *testing.T) {
	path := writeManifest(t, testManifest)

	root, _ := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"config", "lint", "-f", path})

	if err := root.Execute(); err != nil {
		t.Fatalf("lint failed on valid manifest: %v\n%s", err, out.String())
	}
}

func TestConfigLintRejectsUnknownField(t *testing.T) {
	path := writeManifest(t, `version: "1"
servers:
  - name: web
    url: http://localhost:3000
    command: npm run dev
    replicas: 3
`)

	root, _ := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"config", "lint", "-f", path})

	if err := root.Execute(); err == nil {
		t.Fatalf("expected lint to fail on unknown field")
	}
}

func TestAddAndRemoveRoundTrip(t *testing.T) {
	path := writeManifest(t, testManifest)

	root, _ := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"add", "docs", "http://localhost:4000", "npm run docs", "--group", "frontend", "-f", path})
	if err := root.Execute(); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if !bytes.Contains(data, []byte("docs")) {
		t.Fatalf("expected manifest to contain new server, got:\n%s", data)
	}

	root, _ = newRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"remove", "docs", "-f", path})
	if err := root.Execute(); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	data, err = os.ReadFile(path)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if bytes.Contains(data, []byte("docs")) {
		t.Fatalf("expected manifest to no longer contain removed server, got:\n%s", data)
	}
}

func TestRemoveUnknownServerFails(t *testing.T) {
	path := writeManifest(t, testManifest)

	root, _ := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"remove", "ghost", "-f", path})
	if err := root.Execute(); err == nil {
		t.Fatalf("expected remove to fail for unknown server")
	}
}
