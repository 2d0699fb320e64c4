package scan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/tidwall/gjson"

	"github.com/portside-dev/portside/internal/config"
	"github.com/portside-dev/portside/internal/diag"
)

const (
	aiModel        = anthropic.Model("claude-sonnet-4-20250514")
	aiMaxTokens    = 2048
	aiMaxFiles     = 8
	aiMaxFileBytes = 16 * 1024
	aiMaxTreeLines = 200
)

const exploreSystem = `You help configure a dev-server monitoring tool.
Given a project file listing, reply with a JSON array (no prose) of up to
8 file paths worth reading to find commands that start long-running dev
servers. Prefer README files, package manifests and task runners.`

const extractSystem = `You help configure a dev-server monitoring tool.
Given project files, reply with a JSON array (no prose) of objects with
keys "name", "command", "url" and optional "group" describing long-running
dev servers a developer would start in this project. The command must be a
shell command; the url must be the local address the server listens on.
Reply with [] if there are none.`

// AIScanner performs the explore-then-extract pass against the Anthropic
// API.
type AIScanner struct {
	client anthropic.Client
	logger diag.Logger
}

// NewAIScanner constructs the AI pass, or nil when no API key is configured.
func NewAIScanner(apiKey string, logger diag.Logger) *AIScanner {
	if apiKey == "" {
		return nil
	}
	if logger == nil {
		logger = diag.Discard
	}
	return &AIScanner{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		logger: logger,
	}
}

// Scan runs two model calls: one to pick files worth reading, one to
// extract server suggestions from their contents.
func (a *AIScanner) Scan(ctx context.Context, root string) ([]*config.ServerEntry, error) {
	tree, err := projectTree(root)
	if err != nil {
		return nil, err
	}

	reply, err := a.complete(ctx, exploreSystem, "Project files:\n"+tree)
	if err != nil {
		return nil, fmt.Errorf("explore: %w", err)
	}
	paths := parseStringArray(reply)
	if len(paths) == 0 {
		return nil, nil
	}
	if len(paths) > aiMaxFiles {
		paths = paths[:aiMaxFiles]
	}

	var contents strings.Builder
	for _, rel := range paths {
		path := filepath.Join(root, filepath.Clean("/"+rel))
		data, err := os.ReadFile(path)
		if err != nil {
			diag.Logf(a.logger, "scan ai: skip %s: %v", rel, err)
			continue
		}
		if len(data) > aiMaxFileBytes {
			data = data[:aiMaxFileBytes]
		}
		fmt.Fprintf(&contents, "=== %s ===\n%s\n", rel, data)
	}
	if contents.Len() == 0 {
		return nil, nil
	}

	reply, err = a.complete(ctx, extractSystem, contents.String())
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	return parseSuggestions(reply), nil
}

func (a *AIScanner) complete(ctx context.Context, system, prompt string) (string, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     aiModel,
		MaxTokens: aiMaxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}
	var out strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	return out.String(), nil
}

// projectTree produces a bounded relative file listing for the explore
// prompt.
func projectTree(root string) (string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	var lines []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
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
		if len(lines) >= aiMaxTreeLines {
			return fs.SkipAll
		}
		rel, err := filepath.Rel(root, path)
		if err == nil {
			lines = append(lines, rel)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}

// extractJSON trims prose and code fences around the first JSON array in a
// model reply.
func extractJSON(reply string) string {
	start := strings.Index(reply, "[")
	end := strings.LastIndex(reply, "]")
	if start < 0 || end <= start {
		return ""
	}
	return reply[start : end+1]
}

func parseStringArray(reply string) []string {
	raw := extractJSON(reply)
	if raw == "" {
		return nil
	}
	var out []string
	gjson.Parse(raw).ForEach(func(_, value gjson.Result) bool {
		if s := strings.TrimSpace(value.String()); s != "" {
			out = append(out, s)
		}
		return true
	})
	return out
}

func parseSuggestions(reply string) []*config.ServerEntry {
	raw := extractJSON(reply)
	if raw == "" {
		return nil
	}
	var out []*config.ServerEntry
	gjson.Parse(raw).ForEach(func(_, value gjson.Result) bool {
		entry := &config.ServerEntry{
			Name:    strings.TrimSpace(value.Get("name").String()),
			URL:     strings.TrimSpace(value.Get("url").String()),
			Command: strings.TrimSpace(value.Get("command").String()),
			Group:   strings.TrimSpace(value.Get("group").String()),
		}
		if entry.Name != "" && entry.URL != "" && entry.Command != "" {
			out = append(out, entry)
		}
		return true
	})
	return out
}
