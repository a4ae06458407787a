// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"google.golang.org/grpc/credentials/insecure"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/api/option"
	"google.golang.org/grpc"

	"github.com/AleutianAI/AleutianShield/pkg/logging"
	"github.com/AleutianAI/AleutianShield/services/firewall/audit"
	"github.com/AleutianAI/AleutianShield/services/firewall/capability"
	"github.com/AleutianAI/AleutianShield/services/firewall/classifier"
	"github.com/AleutianAI/AleutianShield/services/firewall/dashboard"
	"github.com/AleutianAI/AleutianShield/services/firewall/datatypes"
	"github.com/AleutianAI/AleutianShield/services/firewall/observability"
	"github.com/AleutianAI/AleutianShield/services/firewall/pipeline"
	"github.com/AleutianAI/AleutianShield/services/firewall/reasoning"
	"github.com/AleutianAI/AleutianShield/services/firewall/routes"
	"github.com/AleutianAI/AleutianShield/services/firewall/scanner"
	"github.com/AleutianAI/AleutianShield/services/firewall/verify"
	"github.com/AleutianAI/AleutianShield/services/llm"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "aleutian-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("firewall-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// newLLMClient selects the backend from LLM_BACKEND_TYPE.
func newLLMClient() (llm.LLMClient, error) {
	switch os.Getenv("LLM_BACKEND_TYPE") {
	case "openai":
		slog.Info("Using OpenAI LLM backend")
		return llm.NewOpenAIClient()
	case "claude", "anthropic":
		slog.Info("Using Anthropic (Claude) LLM backend")
		return llm.NewAnthropicClient()
	case "ollama":
		slog.Info("Using Ollama LLM backend")
		return llm.NewOllamaClient()
	default:
		slog.Warn("LLM_BACKEND_TYPE not set or invalid, defaulting to ollama")
		return llm.NewOllamaClient()
	}
}

// newSearcher connects to Weaviate when configured, otherwise runs in
// lightweight mode where every factual claim resolves as Unverifiable.
func newSearcher() capability.Searcher {
	weaviateURL := strings.Trim(os.Getenv("WEAVIATE_SERVICE_URL"), "\"' ")
	if weaviateURL == "" || !strings.Contains(weaviateURL, "http") {
		slog.Info("WEAVIATE_SERVICE_URL not set. Running in lightweight mode (no grounding search).")
		return capability.NullSearcher{}
	}

	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		slog.Warn("WEAVIATE_SERVICE_URL is invalid. Running in lightweight mode.",
			"url", weaviateURL, "error", err)
		return capability.NullSearcher{}
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
	if err != nil {
		slog.Error("Failed to create Weaviate client, running in lightweight mode", "error", err)
		return capability.NullSearcher{}
	}
	if err := capability.EnsureShieldSchema(context.Background(), client, slog.Default()); err != nil {
		slog.Error("Failed to ensure grounding schema, running in lightweight mode", "error", err)
		return capability.NullSearcher{}
	}
	searcher, err := capability.NewWeaviateSearcher(client)
	if err != nil {
		slog.Error("Failed to create searcher, running in lightweight mode", "error", err)
		return capability.NullSearcher{}
	}
	return searcher
}

// newScanner wires the document scanner's report store and archiver.
func newScanner(cfg datatypes.Config) (*scanner.Scanner, error) {
	reports, err := scanner.NewBadgerReportStore(os.Getenv("FIREWALL_SCAN_DB_PATH"))
	if err != nil {
		return nil, err
	}

	var archiver scanner.Archiver
	if cfg.ArchiveBucket != "" {
		var clientOpts []option.ClientOption
		if saKeyPath := os.Getenv("GCS_SA_KEY_PATH"); saKeyPath != "" {
			clientOpts = append(clientOpts, option.WithCredentialsFile(saKeyPath))
		}
		gcsClient, err := storage.NewClient(context.Background(), clientOpts...)
		if err != nil {
			return nil, err
		}
		archiver, err = scanner.NewGCSArchiver(gcsClient, cfg.ArchiveBucket)
		if err != nil {
			return nil, err
		}
		slog.Info("Archiving clean documents to GCS", "bucket", cfg.ArchiveBucket)
	} else {
		dir := os.Getenv("FIREWALL_ARCHIVE_DIR")
		if dir == "" {
			dir = "./data/archive"
		}
		archiver, err = scanner.NewDirArchiver(dir)
		if err != nil {
			return nil, err
		}
		slog.Info("Archiving clean documents locally", "dir", dir)
	}

	return scanner.NewScanner(reports, archiver, slog.Default())
}

func main() {
	cfg, err := datatypes.ConfigFromEnv()
	if err != nil {
		log.Fatalf("FATAL: invalid configuration: %v", err)
	}

	logger, logErr := logging.New(logging.Config{
		Level:   logging.ParseLevel(os.Getenv("FIREWALL_LOG_LEVEL")),
		LogDir:  os.Getenv("FIREWALL_LOG_DIR"),
		Service: "firewall",
	})
	if logErr != nil {
		slog.Warn("file logging unavailable", "error", logErr)
	}
	slog.SetDefault(logger.Logger)
	defer logger.Close()

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	llmClient, err := newLLMClient()
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}

	// Shared reasoning layer: one cache, one coalescing group, for every
	// reasoning-backed component.
	cache := reasoning.NewJudgmentCache(cfg.CacheTTL, cfg.CacheSize,
		reasoning.WithCacheMetrics(
			func() { observability.CacheHits.Inc() },
			func() { observability.CacheMisses.Inc() },
		))
	reasoner, err := reasoning.NewCachedReasoner(llmClient, cache)
	if err != nil {
		log.Fatalf("Failed to build reasoner: %v", err)
	}

	judge := classifier.NewHeuristicJudge(slog.Default())
	if cfg.SignaturePath != "" {
		watcher, err := classifier.NewSignatureWatcher(cfg.SignaturePath, judge)
		if err != nil {
			log.Fatalf("Failed to load attack signatures: %v", err)
		}
		go watcher.Start(context.Background())
	}

	cls, err := classifier.NewClassifier(reasoner, slog.Default())
	if err != nil {
		log.Fatalf("Failed to build classifier: %v", err)
	}
	detector, err := classifier.NewAttackDetector(reasoner, judge, slog.Default())
	if err != nil {
		log.Fatalf("Failed to build attack detector: %v", err)
	}
	mitigator, err := capability.NewLLMMitigator(reasoner)
	if err != nil {
		log.Fatalf("Failed to build mitigator: %v", err)
	}
	generator, err := capability.NewLLMGenerator(llmClient)
	if err != nil {
		log.Fatalf("Failed to build generator: %v", err)
	}
	validator, err := capability.NewLLMCodeValidator(reasoner)
	if err != nil {
		log.Fatalf("Failed to build code validator: %v", err)
	}

	coordinator, err := verify.NewCoordinator(reasoner, newSearcher(), validator,
		cfg.CapabilityTimeout, slog.Default())
	if err != nil {
		log.Fatalf("Failed to build verification coordinator: %v", err)
	}

	auditSink := audit.NewBadgerSink(cfg.AuditDBPath, slog.Default())
	defer auditSink.Close()
	gate, err := audit.NewGate(auditSink, cfg.AuditQueueSize, cfg.AuditReadyTimeout,
		slog.Default(),
		audit.WithGateMetrics(
			func() { observability.AuditEventsDropped.Inc() },
			func() { observability.AuditEventsStored.Inc() },
		))
	if err != nil {
		log.Fatalf("Failed to build audit gate: %v", err)
	}
	gate.Start()
	defer gate.Stop()

	p, err := pipeline.NewPipeline(cls, detector, mitigator, generator, coordinator,
		gate, cfg, slog.Default())
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	docScanner, err := newScanner(cfg)
	if err != nil {
		log.Fatalf("Failed to build document scanner: %v", err)
	}

	hub := dashboard.NewHub(slog.Default())

	router := gin.Default()
	router.Use(otelgin.Middleware("firewall-service"))

	routes.SetupRoutes(router, p, docScanner, hub, auditSink)

	log.Println("Starting the firewall server on port ", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
