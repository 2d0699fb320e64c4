package probe

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestWatchHTTPTransitions(t *testing.T) {
	healthy := make(chan bool, 1)
	healthy <- true
	var state bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case state = <-healthy:
		default:
		}
		if state {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	prober, err := NewHTTP(srv.URL)
	if err != nil {
		t.Fatalf("new http prober: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events := Watch(ctx, prober, Settings{Interval: 10 * time.Millisecond, Timeout: time.Second}, nil)

	select {
	case evt := <-events:
		if evt.Status != StatusUp {
			t.Fatalf("expected up transition, got %+v", evt)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for up transition")
	}
}

func TestWatchHTTPErrorStatusStillCountsAsUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	prober, err := NewHTTP(srv.URL)
	if err != nil {
		t.Fatalf("new http prober: %v", err)
	}
	if err := prober.Probe(context.Background()); err != nil {
		t.Fatalf("a responding server is up regardless of status, got %v", err)
	}
}

func TestWatchTCPClosedPort(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events := Watch(ctx, NewTCP(addr), Settings{Interval: 10 * time.Millisecond, Timeout: time.Second}, nil)

	select {
	case evt := <-events:
		if evt.Status != StatusDown {
			t.Fatalf("expected down transition, got %+v", evt)
		}
		if evt.Err == nil {
			t.Fatal("expected dial error on down event")
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for down transition")
	}
}

func TestWatchRespectsFailureThreshold(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := Watch(ctx, NewTCP(addr), Settings{
		Interval:         5 * time.Millisecond,
		Timeout:          time.Second,
		FailureThreshold: 3,
	}, nil)

	select {
	case evt := <-events:
		if evt.Status != StatusDown {
			t.Fatalf("expected down transition, got %+v", evt)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for thresholded down transition")
	}
}

func TestNewHTTPRejectsBadScheme(t *testing.T) {
	if _, err := NewHTTP("ftp://host"); err == nil {
		t.Fatal("expected scheme error")
	}
}
