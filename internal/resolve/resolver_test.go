package resolve

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/portside-dev/portside/internal/diag"
)

func newTestResolver(run runFunc) *Resolver {
	r := New("/bin/zsh", diag.Discard)
	if run != nil {
		r.run = run
	} else {
		r.run = func(context.Context, string, ...string) ([]byte, error) {
			return nil, errors.New("unexpected shell invocation")
		}
	}
	return r
}

func TestStripCD(t *testing.T) {
	cases := []struct {
		name    string
		command string
		cmd     string
		workdir string
	}{
		{name: "plain", command: "npm run dev", cmd: "npm run dev", workdir: ""},
		{name: "cd and", command: "cd /app && npm run dev", cmd: "npm run dev", workdir: "/app"},
		{name: "cd semicolon", command: "cd /app ; npm run dev", cmd: "npm run dev", workdir: "/app"},
		{name: "double quoted", command: `cd "/my app" && yarn dev`, cmd: "yarn dev", workdir: "/my app"},
		{name: "single quoted", command: `cd '/my app' && yarn dev`, cmd: "yarn dev", workdir: "/my app"},
		{name: "nested cd", command: "cd /a && cd b && npm start", cmd: "npm start", workdir: "/a/b"},
		{name: "bare cd", command: "cd /app", cmd: "cd /app", workdir: ""},
		{name: "whitespace", command: "  cd /app &&   npm run dev  ", cmd: "npm run dev", workdir: "/app"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd, workdir := StripCD(tc.command)
			if cmd != tc.cmd || workdir != tc.workdir {
				t.Fatalf("StripCD(%q) = (%q, %q), want (%q, %q)", tc.command, cmd, workdir, tc.cmd, tc.workdir)
			}
		})
	}
}

func TestResolveCompoundOrder(t *testing.T) {
	r := newTestResolver(nil)
	spec := r.Resolve(context.Background(), "a && b && c")
	want := []string{"a && b && c", "c", "b", "a"}
	if !reflect.DeepEqual(spec.Patterns, want) {
		t.Fatalf("patterns = %v, want %v", spec.Patterns, want)
	}
}

func TestResolveSemicolonSegments(t *testing.T) {
	r := newTestResolver(nil)
	spec := r.Resolve(context.Background(), "make build ; ./server --port 8080")
	want := []string{"make build ; ./server --port 8080", "./server --port 8080", "make build"}
	if !reflect.DeepEqual(spec.Patterns, want) {
		t.Fatalf("patterns = %v, want %v", spec.Patterns, want)
	}
}

func TestResolveSimpleCommandSinglePattern(t *testing.T) {
	r := newTestResolver(nil)
	spec := r.Resolve(context.Background(), "cd /app && npm run dev")
	if !reflect.DeepEqual(spec.Patterns, []string{"npm run dev"}) {
		t.Fatalf("patterns = %v", spec.Patterns)
	}
	if spec.Workdir != "/app" {
		t.Fatalf("workdir = %q", spec.Workdir)
	}
}

func TestResolveEmptyCommand(t *testing.T) {
	r := newTestResolver(nil)
	spec := r.Resolve(context.Background(), "   ")
	if len(spec.Patterns) != 0 {
		t.Fatalf("expected no patterns, got %v", spec.Patterns)
	}
}

func TestResolveBashAlias(t *testing.T) {
	r := newTestResolver(func(_ context.Context, _ string, args ...string) ([]byte, error) {
		return []byte("serve is aliased to `cd /x && node index.js'\n"), nil
	})
	spec := r.Resolve(context.Background(), "serve")
	want := []string{"node index.js"}
	if !reflect.DeepEqual(spec.Patterns, want) {
		t.Fatalf("patterns = %v, want %v", spec.Patterns, want)
	}
	if spec.Workdir != "/x" {
		t.Fatalf("workdir = %q, want /x", spec.Workdir)
	}
}

func TestResolveZshAlias(t *testing.T) {
	r := newTestResolver(func(_ context.Context, _ string, args ...string) ([]byte, error) {
		return []byte("dev is an alias for npm run dev\n"), nil
	})
	spec := r.Resolve(context.Background(), "dev")
	if !reflect.DeepEqual(spec.Patterns, []string{"npm run dev"}) {
		t.Fatalf("patterns = %v", spec.Patterns)
	}
}

func TestResolveShellFunction(t *testing.T) {
	calls := 0
	r := newTestResolver(func(_ context.Context, _ string, args ...string) ([]byte, error) {
		calls++
		if calls == 1 {
			return []byte("startapp is a shell function\n"), nil
		}
		body := `startapp () {
    # bring the app up
    cd ~/projects/app
    export NODE_ENV=development
    npm install
    PORT=4000 npm run dev
}`
		return []byte(body), nil
	})
	spec := r.Resolve(context.Background(), "startapp")
	if !reflect.DeepEqual(spec.Patterns, []string{"npm run dev"}) {
		t.Fatalf("patterns = %v", spec.Patterns)
	}
}

func TestResolveShellFunctionMultipleCommands(t *testing.T) {
	calls := 0
	r := newTestResolver(func(_ context.Context, _ string, args ...string) ([]byte, error) {
		calls++
		if calls == 1 {
			return []byte("up is a function\n"), nil
		}
		body := "up () {\n  docker-compose up -d\n  npm run dev\n}"
		return []byte(body), nil
	})
	spec := r.Resolve(context.Background(), "up")
	want := []string{"docker-compose up -d && npm run dev", "npm run dev", "docker-compose up -d"}
	if !reflect.DeepEqual(spec.Patterns, want) {
		t.Fatalf("patterns = %v, want %v", spec.Patterns, want)
	}
}

func TestResolveFunctionWithNoUsableLinesFallsBack(t *testing.T) {
	calls := 0
	r := newTestResolver(func(_ context.Context, _ string, args ...string) ([]byte, error) {
		calls++
		if calls == 1 {
			return []byte("noop is a shell function\n"), nil
		}
		return []byte("noop () {\n  cd /tmp\n  export FOO=bar\n}"), nil
	})
	spec := r.Resolve(context.Background(), "noop")
	if !reflect.DeepEqual(spec.Patterns, []string{"noop"}) {
		t.Fatalf("expected literal fallback, got %v", spec.Patterns)
	}
}

func TestResolveShellFailureFallsBack(t *testing.T) {
	r := newTestResolver(func(_ context.Context, _ string, args ...string) ([]byte, error) {
		return nil, errors.New("command not found")
	})
	spec := r.Resolve(context.Background(), "mystery")
	if !reflect.DeepEqual(spec.Patterns, []string{"mystery"}) {
		t.Fatalf("expected literal fallback, got %v", spec.Patterns)
	}
}

func TestResolveNoShellSkipsIntrospection(t *testing.T) {
	r := New("", diag.Discard)
	r.run = func(context.Context, string, ...string) ([]byte, error) {
		panic("shell must not be invoked")
	}
	spec := r.Resolve(context.Background(), "serve")
	if !reflect.DeepEqual(spec.Patterns, []string{"serve"}) {
		t.Fatalf("patterns = %v", spec.Patterns)
	}
}

func TestShellQuote(t *testing.T) {
	if got := shellQuote("plain"); got != "'plain'" {
		t.Fatalf("got %q", got)
	}
	if got := shellQuote("it's"); got != `'it'\''s'` {
		t.Fatalf("got %q", got)
	}
}
