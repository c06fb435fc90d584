package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"watvision-service/internal/chirp"
	"watvision-service/internal/config"
	"watvision-service/internal/engine"
	"watvision-service/internal/events"
	"watvision-service/internal/observability"
	"watvision-service/internal/observability/logging"
	"watvision-service/internal/observability/metrics"
	"watvision-service/internal/server"
	"watvision-service/internal/speech"
	speechgoogle "watvision-service/internal/speech/google"
	speechmock "watvision-service/internal/speech/mock"
	"watvision-service/internal/vision"
	visionmock "watvision-service/internal/vision/mock"
	visionremote "watvision-service/internal/vision/remote"
)

func main() {
	cfg := config.Load()
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Observability.LogLevel
	logging.Init(logCfg)

	publisher := events.New(&events.Config{
		Enabled:     cfg.Kafka.Enabled,
		Brokers:     cfg.Kafka.Brokers,
		TopicStep:   cfg.Kafka.TopicStep,
		TopicSpeech: cfg.Kafka.TopicSpeech,
		Principal:   cfg.Kafka.Principal,
	})
	defer publisher.Close()

	var visionClient vision.Client
	switch cfg.Vision.Provider {
	case "remote":
		visionClient = visionremote.New(visionremote.Config{
			Endpoint:       cfg.Vision.Endpoint,
			AuthToken:      cfg.Vision.AuthToken,
			RequestTimeout: cfg.Vision.RequestTimeout,
		})
	default:
		log.Info().Msg("using mock vision collaborator")
		visionClient = visionmock.New()
	}

	var bridgeFactory server.BridgeFactory
	switch cfg.Speech.Provider {
	case "google":
		bridgeFactory = func(ctx context.Context) (speech.Bridge, error) {
			return speechgoogle.New(ctx, speechgoogle.Config{
				LanguageCode: cfg.Speech.LanguageCode,
				SampleRateHz: cfg.Speech.SampleRateHz,
			})
		}
	default:
		log.Info().Msg("using mock speech bridge")
		bridgeFactory = func(ctx context.Context) (speech.Bridge, error) {
			return speechmock.New(), nil
		}
	}

	eng := engine.New(
		visionClient,
		chirp.NewMapper(chirp.Params{
			MinFreq:     cfg.Chirp.MinFreq,
			MaxFreq:     cfg.Chirp.MaxFreq,
			Sigma:       cfg.Chirp.Sigma,
			MaxDistance: cfg.Chirp.MaxDistance,
		}),
		metrics.DefaultMetrics,
		logging.WithComponent("engine"),
		engine.Config{
			MinInliers:    cfg.Vision.MinInliers,
			MinConfidence: cfg.Vision.MinConfidence,
		},
	)

	handler := server.NewHandler(cfg, eng, publisher, metrics.DefaultMetrics, logging.WithComponent("server"), bridgeFactory)

	obs := observability.NewServer(":"+cfg.Observability.MetricsPort, logging.WithComponent("observability"))
	obs.Start()

	httpServer := &http.Server{
		Addr:    ":" + cfg.Service.HTTPPort,
		Handler: server.NewRouter(handler),
	}

	go func() {
		log.Info().Str("port", cfg.Service.HTTPPort).Msg("service started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http serve failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	if err := obs.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("observability shutdown failed")
	}
}
