package app

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"

	"github.com/mk-gloamglozer/rusty-poker/internal/board"
	"github.com/mk-gloamglozer/rusty-poker/internal/config"
)

// freeAddr reserves an ephemeral localhost port and hands its address back
// for the application to bind.
func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	addr := l.Addr().String()
	l.Close()
	return addr
}

// startApp builds and starts an application, registering an ordered stop.
func startApp(t *testing.T, cfg config.Config) *Application {
	t.Helper()
	application, err := NewApplication(context.Background(), cfg)
	if err != nil {
		t.Fatalf("build application: %v", err)
	}
	if err := application.Start(context.Background()); err != nil {
		t.Fatalf("start application: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := application.Stop(ctx); err != nil {
			t.Errorf("stop application: %v", err)
		}
	})
	return application
}

// TestNewApplication_InvalidConfig verifies configuration problems are
// caught before any component starts.
func TestNewApplication_InvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Store.Backend = "etcd"

	_, err := NewApplication(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("error = %q, want an invalid configuration wrap", err)
	}
}

// TestNewApplication_NATSUnreachable verifies a dead broker URL fails the
// build instead of starting a half-wired server.
func TestNewApplication_NATSUnreachable(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.HTTP.Addr = freeAddr(t)
	cfg.NATS.URL = "nats://127.0.0.1:1"

	if _, err := NewApplication(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unreachable NATS")
	}
}

// TestApplication_Lifecycle runs the assembled server end to end over the
// in-memory backend: health, a command, and the stored events.
func TestApplication_Lifecycle(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.HTTP.Addr = freeAddr(t)
	application := startApp(t, cfg)
	base := "http://" + application.Addr()

	resp, err := http.Get(base + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Post(base+"/board/b1", "application/json",
		strings.NewReader(`{"AddParticipant":{"participant_name":"Ann"}}`))
	if err != nil {
		t.Fatalf("command request failed: %v", err)
	}
	var produced json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&produced); err != nil {
		t.Fatalf("command response undecodable: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("command status = %d, want 200", resp.StatusCode)
	}
	events, err := board.UnmarshalEvents(produced)
	if err != nil {
		t.Fatalf("command events undecodable: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if _, ok := events[0].(board.ParticipantAdded); !ok {
		t.Fatalf("event = %T, want ParticipantAdded", events[0])
	}

	resp, err = http.Get(base + "/board/b1/events")
	if err != nil {
		t.Fatalf("events request failed: %v", err)
	}
	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatalf("events response undecodable: %v", err)
	}
	resp.Body.Close()
	stored, err := board.UnmarshalEvents(raw)
	if err != nil {
		t.Fatalf("stored events undecodable: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("log holds %d events, want 1", len(stored))
	}
}

// TestApplication_SQLiteBackend verifies the persistent backend wires up:
// a command lands and survives into the board view.
func TestApplication_SQLiteBackend(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.HTTP.Addr = freeAddr(t)
	cfg.Store.Backend = config.BackendSQLite
	cfg.Store.SQLiteDSN = filepath.Join(t.TempDir(), "poker.db")
	application := startApp(t, cfg)
	base := "http://" + application.Addr()

	resp, err := http.Post(base+"/board/b1", "application/json",
		strings.NewReader(`{"AddParticipant":{"participant_name":"Ann"}}`))
	if err != nil {
		t.Fatalf("command request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("command status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(base + "/board/b1")
	if err != nil {
		t.Fatalf("board request failed: %v", err)
	}
	var view struct {
		Participants []struct {
			Name string `json:"name"`
		} `json:"participants"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("board response undecodable: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("board status = %d, want 200", resp.StatusCode)
	}
	if len(view.Participants) != 1 || view.Participants[0].Name != "Ann" {
		t.Fatalf("view = %+v, want Ann alone", view)
	}
}

// TestApplication_WithNATS verifies the notifier wiring against a real
// broker through a full start and stop.
func TestApplication_WithNATS(t *testing.T) {
	opts := &natsserver.Options{Host: "127.0.0.1", Port: -1}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}

	cfg := config.DefaultConfig()
	cfg.HTTP.Addr = freeAddr(t)
	cfg.NATS.URL = srv.ClientURL()
	application := startApp(t, cfg)

	resp, err := http.Post("http://"+application.Addr()+"/board/b1", "application/json",
		strings.NewReader(`{"AddParticipant":{"participant_name":"Ann"}}`))
	if err != nil {
		t.Fatalf("command request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("command status = %d, want 200", resp.StatusCode)
	}
}
