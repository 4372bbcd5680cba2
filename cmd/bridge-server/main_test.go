package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/signalsfoundry/bridge-simulator/internal/config"
	"github.com/signalsfoundry/bridge-simulator/internal/logging"
	"github.com/signalsfoundry/bridge-simulator/internal/world"
)

func localListener(t *testing.T) net.Listener {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	return lis
}

func TestBridgeServerStartupSmoke(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	lis := listeners{
		ws:      localListener(t),
		grpc:    localListener(t),
		metrics: localListener(t),
	}

	cfg := config.Default()
	cfg.LogLevel = "warn"
	cfg.Loop.Interval = 20 * time.Millisecond
	cfg.Loop.Accelerated = true

	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, cfg, log, lis)
	}()

	conn, err := grpc.NewClient(lis.grpc.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	defer conn.Close()

	client := healthpb.NewHealthClient(conn)
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: healthService})
		if err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("health never reported SERVING: resp=%v err=%v", resp, err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	wsURL := "ws://" + lis.ws.Addr().String() + "/ws?name=kirk"
	wsConn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer wsConn.Close()

	_ = wsConn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var env struct {
		Event   string `json:"event"`
		Payload struct {
			ID string `json:"id"`
			OK bool   `json:"ok"`
		} `json:"payload"`
	}
	if err := wsConn.ReadJSON(&env); err != nil {
		t.Fatalf("read login result: %v", err)
	}
	if env.Event != "CommandResult" || env.Payload.ID != "login" || !env.Payload.OK {
		t.Fatalf("login frame = %+v", env)
	}

	metricsResp, err := http.Get("http://" + lis.metrics.Addr().String() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(metricsResp.Body)
	_ = metricsResp.Body.Close()
	if !strings.Contains(string(body), "bridge_players 1") {
		t.Fatalf("metrics missing player gauge:\n%s", body)
	}

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("server returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("server did not shut down")
	}
}

func TestLoadScenarioFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.json")
	doc := `{"objects": [{"kind": "planet", "name": "Vulcan", "position": {"x": 1, "y": 1, "z": 1}, "radius": 6000}]}`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	w := world.New(nil)
	defer w.Close()
	if err := loadScenario(context.Background(), w, path, logging.Noop()); err != nil {
		t.Fatalf("loadScenario error: %v", err)
	}
	if w.Objects.Len() != 1 {
		t.Fatalf("objects = %d, want 1", w.Objects.Len())
	}

	if err := loadScenario(context.Background(), w, filepath.Join(dir, "missing.json"), logging.Noop()); err == nil {
		t.Fatalf("missing scenario should fail")
	}
	if err := loadScenario(context.Background(), w, "", logging.Noop()); err != nil {
		t.Fatalf("empty path should be a no-op, got %v", err)
	}
}

func TestListenDisabledAddress(t *testing.T) {
	lis, err := listen(nil, "")
	if err != nil || lis != nil {
		t.Fatalf("listen(nil, \"\") = %v, %v; want nil, nil", lis, err)
	}
	pre := localListener(t)
	defer pre.Close()
	got, err := listen(pre, ":1")
	if err != nil || got != pre {
		t.Fatalf("pre-bound listener should be returned unchanged")
	}
}
