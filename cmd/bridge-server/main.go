package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/signalsfoundry/bridge-simulator/internal/command"
	"github.com/signalsfoundry/bridge-simulator/internal/config"
	"github.com/signalsfoundry/bridge-simulator/internal/logging"
	"github.com/signalsfoundry/bridge-simulator/internal/observability"
	"github.com/signalsfoundry/bridge-simulator/internal/transport/ws"
	"github.com/signalsfoundry/bridge-simulator/internal/world"
	"github.com/signalsfoundry/bridge-simulator/timectrl"
)

// healthService is the gRPC health service name reported for the game loop.
const healthService = "bridge.Simulation"

func main() {
	configPath := flag.String("config", "", "Path to a config file (yaml, json or toml)")
	scenarioPath := flag.String("scenario", "", "Scenario JSON to load at startup; overrides game.scenario")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bridge-server: %v\n", err)
		os.Exit(2)
	}
	if *scenarioPath != "" {
		cfg.Game.Scenario = *scenarioPath
	}

	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, listeners{}); err != nil {
		log.Error(ctx, "bridge server failed", logging.Err(err))
		os.Exit(1)
	}
}

// listeners lets callers supply pre-bound sockets. A nil listener is
// opened from the configured address; an empty address disables it.
type listeners struct {
	ws      net.Listener
	grpc    net.Listener
	metrics net.Listener
}

func listen(lis net.Listener, addr string) (net.Listener, error) {
	if lis != nil || addr == "" {
		return lis, nil
	}
	return net.Listen("tcp", addr)
}

// run wires the simulation and serves until ctx is cancelled.
func run(ctx context.Context, cfg config.Config, log logging.Logger, lis listeners) error {
	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
	}, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	reg := prometheus.NewRegistry()
	engineMetrics, err := observability.NewEngineCollector(reg)
	if err != nil {
		return fmt.Errorf("engine metrics: %w", err)
	}
	serverMetrics, err := observability.NewServerCollector(reg)
	if err != nil {
		return fmt.Errorf("server metrics: %w", err)
	}

	mode := timectrl.RealTime
	if cfg.Loop.Accelerated {
		mode = timectrl.Accelerated
	}
	loop := timectrl.NewLoop(cfg.Loop.Interval, mode,
		timectrl.WithLogger(log),
		timectrl.WithRecorder(engineMetrics),
		timectrl.WithInboxSize(cfg.Loop.InboxSize),
	)

	w := world.New(log,
		world.WithQueueCapacity(cfg.Game.QueueCapacity),
		world.WithSensorRange(cfg.Game.SensorRange),
		world.WithMetrics(engineMetrics),
		world.WithClock(loop),
	)
	defer w.Close()
	loop.AddListener(w.Tick)

	if err := loadScenario(ctx, w, cfg.Game.Scenario, log); err != nil {
		return err
	}

	codec, err := ws.CodecByName(cfg.Session.Codec)
	if err != nil {
		return err
	}
	handler := command.NewHandler(w, loop, log,
		command.WithRateLimit(cfg.Session.CommandRate, cfg.Session.CommandBurst),
		command.WithRecorder(serverMetrics),
	)
	wsServer := ws.NewServer(w, handler, loop,
		ws.WithCodec(codec),
		ws.WithMailboxSize(cfg.Session.MailboxSize),
		ws.WithWriteTimeout(cfg.Session.WriteTimeout),
		ws.WithLogger(log),
	)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(healthService, healthpb.HealthCheckResponse_NOT_SERVING)
	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(serverMetrics.UnaryServerInterceptor()),
	)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	wsLis, err := listen(lis.ws, cfg.Server.WebsocketAddress)
	if err != nil {
		return fmt.Errorf("listen websocket: %w", err)
	}
	grpcLis, err := listen(lis.grpc, cfg.Server.GRPCAddress)
	if err != nil {
		closeAll(wsLis)
		return fmt.Errorf("listen grpc: %w", err)
	}
	metricsLis, err := listen(lis.metrics, cfg.Server.MetricsAddress)
	if err != nil {
		closeAll(wsLis, grpcLis)
		return fmt.Errorf("listen metrics: %w", err)
	}

	errCh := make(chan error, 3)

	var wsHTTP *http.Server
	if wsLis != nil {
		mux := http.NewServeMux()
		mux.Handle("/ws", wsServer)
		wsHTTP = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go serveHTTP(ctx, wsHTTP, wsLis, "websocket", log, errCh)
	}

	var metricsHTTP *http.Server
	if metricsLis != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", engineMetrics.Handler())
		metricsHTTP = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go serveHTTP(ctx, metricsHTTP, metricsLis, "metrics", log, errCh)
	}

	if grpcLis != nil {
		log.Info(ctx, "serving gRPC health", logging.String("addr", grpcLis.Addr().String()))
		go func() {
			if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	// the loop outlives ctx so sessions can log out during shutdown
	loop.Start(context.WithoutCancel(ctx))
	healthServer.SetServingStatus(healthService, healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	log.Info(ctx, "simulation running",
		logging.Duration("interval", loop.Interval()),
		logging.String("mode", loop.Mode().String()),
	)

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	log.Info(context.Background(), "shutting down bridge server")
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if wsHTTP != nil {
		_ = wsHTTP.Shutdown(shutdownCtx)
	}
	wsServer.Close()
	loop.Stop()
	grpcServer.GracefulStop()
	if metricsHTTP != nil {
		_ = metricsHTTP.Shutdown(shutdownCtx)
	}
	return serveErr
}

func serveHTTP(ctx context.Context, srv *http.Server, lis net.Listener, name string, log logging.Logger, errCh chan<- error) {
	log.Info(ctx, "serving "+name, logging.String("addr", lis.Addr().String()))
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errCh <- fmt.Errorf("%s server: %w", name, err)
	}
}

func closeAll(ls ...net.Listener) {
	for _, l := range ls {
		if l != nil {
			_ = l.Close()
		}
	}
}

func loadScenario(ctx context.Context, w *world.World, path string, log logging.Logger) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open scenario: %w", err)
	}
	defer f.Close()

	sc, err := w.LoadScenario(f)
	if err != nil {
		return fmt.Errorf("load scenario %s: %w", path, err)
	}
	log.Info(ctx, "loaded scenario",
		logging.String("path", path),
		logging.Int("objects", len(sc.ObjectIDs)),
		logging.Int("ships", len(sc.ShipIDs)),
	)
	return nil
}
