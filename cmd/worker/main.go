package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/homewatch/internal/analysis"
	"github.com/your-org/homewatch/internal/analysis/httpvision"
	"github.com/your-org/homewatch/internal/config"
	"github.com/your-org/homewatch/internal/embed"
	"github.com/your-org/homewatch/internal/entity"
	"github.com/your-org/homewatch/internal/models"
	"github.com/your-org/homewatch/internal/notify"
	"github.com/your-org/homewatch/internal/observability"
	"github.com/your-org/homewatch/internal/processor"
	"github.com/your-org/homewatch/internal/queue"
	"github.com/your-org/homewatch/internal/sampler"
	"github.com/your-org/homewatch/internal/storage"
	"github.com/your-org/homewatch/internal/zones"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting homewatch analysis worker",
		"workers", cfg.Pipeline.WorkerCount,
		"cpu_cores", runtime.NumCPU(),
	)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to MinIO
	media, err := storage.NewMediaStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// AI providers in configured priority order
	providers := make([]analysis.Provider, 0, len(cfg.Analysis.Providers))
	for _, pc := range cfg.Analysis.Providers {
		providers = append(providers, httpvision.NewClient(pc))
		slog.Info("registered vision provider", "name", pc.Name, "model", pc.Model, "capabilities", pc.Capabilities)
	}
	if len(providers) == 0 {
		slog.Error("no vision providers configured")
		os.Exit(1)
	}

	orchestrator := analysis.NewOrchestrator(providers,
		sampler.New(cfg.Sampling.BlurThreshold), media,
		analysis.Options{
			VideoTimeout: cfg.Analysis.VideoTimeout,
			TargetFrames: cfg.Sampling.TargetFrames,
			Strategy:     sampler.ParseStrategy(cfg.Sampling.Strategy),
		})

	// Local embedding model for entity matching. Matching is best-effort:
	// without a model the worker still creates events, just unlinked.
	var embedder processor.EmbeddingSource
	if cfg.Matching.ModelPath != "" {
		ort.SetSharedLibraryPath(getONNXLibPath())
		if err := ort.InitializeEnvironment(); err != nil {
			slog.Warn("onnx runtime init failed, entity matching disabled", "error", err)
		} else {
			defer ort.DestroyEnvironment()
			extractor, err := embed.NewExtractor(cfg.Matching)
			if err != nil {
				slog.Warn("load embedding model failed, entity matching disabled", "error", err)
			} else {
				defer extractor.Close()
				embedder = extractor
				slog.Info("embedding model loaded", "path", cfg.Matching.ModelPath, "dim", extractor.Dim())
			}
		}
	}

	matcher := entity.NewMatcher(db, cfg.Matching.Threshold)
	filter := zones.NewFilter(db)
	fanout := notify.NewFanout(10*time.Second, notify.NewNATSNotifier(producer))

	proc := processor.New(cfg.Pipeline, filter, orchestrator, matcher, embedder, media, db, fanout)

	// The pool runs on its own context so in-flight triggers keep their
	// DB and provider calls alive while the queue drains at shutdown.
	// Only the NATS intake is cancelled on a signal.
	poolCtx, stopPool := context.WithCancel(context.Background())
	defer stopPool()
	intakeCtx, stopIntake := context.WithCancel(context.Background())
	defer stopIntake()

	proc.Start(poolCtx)

	// Feed the in-process queue from the MOTION stream
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	err = consumer.ConsumeMotion(intakeCtx, "analysis-workers", func(ctx context.Context, msg jetstream.Msg) error {
		var trigger models.MotionTrigger
		if err := json.Unmarshal(msg.Data(), &trigger); err != nil {
			slog.Error("unmarshal motion trigger", "error", err)
			return nil // Don't retry on unmarshal errors
		}
		proc.Enqueue(trigger)
		return nil
	})
	if err != nil {
		slog.Error("start motion consumer", "error", err)
		os.Exit(1)
	}

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		slog.Info("worker metrics listening", "addr", ":8082")
		if err := http.ListenAndServe(":8082", mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	stopIntake()
	proc.Shutdown(context.Background())
	stopPool()
	slog.Info("worker stopped")
}

// getONNXLibPath returns the ONNX Runtime shared library path
// based on the operating system.
func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
