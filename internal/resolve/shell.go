package resolve

import (
	"context"
	"os/exec"
	"regexp"
	"strings"

	"github.com/portside-dev/portside/internal/diag"
)

// resolveWord asks the user's interactive shell what a bare token means. The
// interactive flag matters: aliases and functions live in rc files that only
// interactive shells source. Every failure mode (no shell, timeout, unknown
// command, unusable output) reports ok=false so the caller falls back to the
// literal token.
func (r *Resolver) resolveWord(ctx context.Context, token string) (string, bool) {
	if r.shell == "" {
		return "", false
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.run(ctx, r.shell, "-ic", "type "+shellQuote(token))
	if err != nil {
		diag.Logf(r.logger, "resolve: shell type lookup for %q failed: %v", token, err)
		return "", false
	}
	report := strings.TrimSpace(string(out))
	if report == "" {
		return "", false
	}

	if expansion, ok := parseAliasReport(report); ok {
		return expansion, true
	}
	if strings.Contains(report, "is a shell function") || strings.Contains(report, "is a function") {
		return r.resolveFunction(ctx, token)
	}
	return "", false
}

var aliasMarkers = []string{"is aliased to ", "is an alias for "}

// parseAliasReport extracts the expansion from a shell's `type` output.
// bash reports "x is aliased to `npm run dev'", zsh "x is an alias for npm
// run dev".
func parseAliasReport(report string) (string, bool) {
	for _, line := range strings.Split(report, "\n") {
		for _, marker := range aliasMarkers {
			idx := strings.Index(line, marker)
			if idx < 0 {
				continue
			}
			expansion := strings.TrimSpace(line[idx+len(marker):])
			expansion = strings.Trim(expansion, "`'\"")
			if expansion != "" {
				return expansion, true
			}
		}
	}
	return "", false
}

func (r *Resolver) resolveFunction(ctx context.Context, token string) (string, bool) {
	quoted := shellQuote(token)
	out, err := r.run(ctx, r.shell, "-ic", "declare -f "+quoted+" 2>/dev/null || functions "+quoted)
	if err != nil {
		diag.Logf(r.logger, "resolve: function body lookup for %q failed: %v", token, err)
		return "", false
	}
	body := extractCommands(string(out))
	if body == "" {
		diag.Logf(r.logger, "resolve: function %q has no usable command lines", token)
		return "", false
	}
	return body, true
}

// Lines whose first word is one of these are shell scaffolding rather than a
// long-running command.
var skipWords = map[string]struct{}{
	"cd": {}, "export": {}, "source": {}, ".": {},
	"if": {}, "then": {}, "else": {}, "elif": {}, "fi": {},
	"for": {}, "while": {}, "until": {}, "do": {}, "done": {},
	"case": {}, "esac": {}, "return": {}, "local": {}, "set": {},
	"unset": {}, "exit": {}, "echo": {}, "function": {},
}

// setupWords is a best-effort keyword heuristic for one-shot preparation
// steps that precede the real server command inside a function body. It is a
// fixed, extensible list, not a parser.
var setupWords = []string{"setup", "bootstrap", "install", "migrate", "migration"}

var envAssignPrefix = regexp.MustCompile(`^(?:\w+=\S+\s+)+`)

// extractCommands filters a line-oriented function body down to the lines
// that look like executable commands and joins them with && into a synthetic
// compound command.
func extractCommands(body string) string {
	var kept []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSuffix(line, ";")
		line = strings.TrimSpace(strings.TrimSuffix(line, "&&"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "{" || line == "}" {
			continue
		}
		if strings.Contains(line, "()") && strings.Contains(line, "{") {
			continue
		}
		line = envAssignPrefix.ReplaceAllString(line, "")
		if line == "" {
			continue
		}
		first := strings.ToLower(firstWord(line))
		if _, skip := skipWords[first]; skip {
			continue
		}
		if isSetupLine(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, " && ")
}

func isSetupLine(line string) bool {
	lower := strings.ToLower(line)
	for _, word := range setupWords {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

func firstWord(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// shellQuote wraps a value in single quotes, escaping embedded quotes, so
// user-authored tokens cannot inject into the shell invocation.
func shellQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}

func runShell(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}
