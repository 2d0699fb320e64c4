package scan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/docker/go-connections/nat"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/portside-dev/portside/internal/config"
)

const (
	maxScanDepth    = 4
	defaultDevPort  = 3000
	defaultHTTPHost = "localhost"
)

var skipDirs = map[string]struct{}{
	"node_modules": {}, ".git": {}, "vendor": {}, "dist": {},
	"build": {}, ".next": {}, "target": {}, "__pycache__": {},
}

// serveScripts are package.json script names that look like dev servers.
var serveScripts = []string{"dev", "start", "serve", "watch", "preview"}

// Heuristic walks the project for well-known manifest files and derives
// server suggestions from them.
func Heuristic(ctx context.Context, root string) ([]*config.ServerEntry, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve scan root: %w", err)
	}

	var suggestions []*config.ServerEntry
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if _, skip := skipDirs[d.Name()]; skip {
				return fs.SkipDir
			}
			if depth(root, path) > maxScanDepth {
				return fs.SkipDir
			}
			return nil
		}
		dir := filepath.Dir(path)
		switch d.Name() {
		case "package.json":
			suggestions = append(suggestions, fromPackageJSON(path, dir)...)
		case "Procfile":
			suggestions = append(suggestions, fromProcfile(path, dir)...)
		case "docker-compose.yml", "docker-compose.yaml", "compose.yml", "compose.yaml":
			suggestions = append(suggestions, fromCompose(path, dir)...)
		case "Makefile":
			suggestions = append(suggestions, fromMakefile(path, dir)...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return suggestions, nil
}

func depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}

func fromPackageJSON(path, dir string) []*config.ServerEntry {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	scripts := gjson.GetBytes(data, "scripts")
	if !scripts.Exists() {
		return nil
	}
	pkgName := gjson.GetBytes(data, "name").String()
	if pkgName == "" {
		pkgName = filepath.Base(dir)
	}
	manager := detectPackageManager(dir)

	var out []*config.ServerEntry
	for _, script := range serveScripts {
		body := scripts.Get(script)
		if !body.Exists() {
			continue
		}
		port := guessPort(body.String())
		if port == 0 {
			port = defaultDevPort
		}
		out = append(out, &config.ServerEntry{
			Name:    pkgName + ":" + script,
			URL:     localURL(port),
			Command: manager + " run " + script,
			Group:   pkgName,
			Workdir: dir,
		})
	}
	return out
}

func detectPackageManager(dir string) string {
	switch {
	case fileExists(filepath.Join(dir, "pnpm-lock.yaml")):
		return "pnpm"
	case fileExists(filepath.Join(dir, "yarn.lock")):
		return "yarn"
	case fileExists(filepath.Join(dir, "bun.lockb")):
		return "bun"
	default:
		return "npm"
	}
}

var procfileLine = regexp.MustCompile(`^([A-Za-z0-9_-]+):\s*(.+)$`)

func fromProcfile(path, dir string) []*config.ServerEntry {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	project := filepath.Base(dir)
	var out []*config.ServerEntry
	for _, line := range strings.Split(string(data), "\n") {
		m := procfileLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		command := strings.TrimSpace(m[2])
		port := guessPort(command)
		if port == 0 {
			port = defaultDevPort
		}
		out = append(out, &config.ServerEntry{
			Name:    project + ":" + m[1],
			URL:     localURL(port),
			Command: command,
			Group:   project,
			Workdir: dir,
		})
	}
	return out
}

type composeFile struct {
	Services map[string]struct {
		Ports []string `yaml:"ports"`
	} `yaml:"services"`
}

func fromCompose(path, dir string) []*config.ServerEntry {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var doc composeFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil
	}
	project := filepath.Base(dir)
	var out []*config.ServerEntry
	for service, spec := range doc.Services {
		port := 0
		for _, portSpec := range spec.Ports {
			mappings, err := nat.ParsePortSpec(portSpec)
			if err != nil {
				continue
			}
			for _, mapping := range mappings {
				hostPort := strings.TrimSpace(mapping.Binding.HostPort)
				if hostPort == "" {
					continue
				}
				start, _, err := nat.ParsePortRange(hostPort)
				if err == nil && start > 0 {
					port = int(start)
					break
				}
			}
			if port != 0 {
				break
			}
		}
		if port == 0 {
			continue
		}
		out = append(out, &config.ServerEntry{
			Name:    project + ":" + service,
			URL:     localURL(port),
			Command: "docker compose up " + service,
			Group:   project,
			Workdir: dir,
		})
	}
	return out
}

var makeTarget = regexp.MustCompile(`^([A-Za-z0-9_-]+):(?:\s|$)`)

var serveTargets = map[string]struct{}{
	"dev": {}, "serve": {}, "start": {}, "run": {},
}

func fromMakefile(path, dir string) []*config.ServerEntry {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	project := filepath.Base(dir)
	var out []*config.ServerEntry
	for _, line := range strings.Split(string(data), "\n") {
		m := makeTarget.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if _, ok := serveTargets[m[1]]; !ok {
			continue
		}
		out = append(out, &config.ServerEntry{
			Name:    project + ":" + m[1],
			URL:     localURL(defaultDevPort),
			Command: "make " + m[1],
			Group:   project,
			Workdir: dir,
		})
	}
	return out
}

var portFlag = regexp.MustCompile(`(?:--port[= ]|-p[= ]|PORT=|:)(\d{2,5})`)

// guessPort extracts a plausible TCP port from a command string.
func guessPort(command string) int {
	m := portFlag.FindStringSubmatch(command)
	if m == nil {
		return 0
	}
	port, err := strconv.Atoi(m[1])
	if err != nil || port <= 0 || port > 65535 {
		return 0
	}
	return port
}

func localURL(port int) string {
	return fmt.Sprintf("http://%s:%d", defaultHTTPHost, port)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
