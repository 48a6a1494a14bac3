// Command lcmdemo connects to an lcm-go endpoint, subscribes to a
// channel pattern, and periodically publishes a message, logging every
// delivery. It exists to exercise the library end to end and as a
// worked example of wiring a Registry into a small program.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Pluviolithic/lcm-go"
	"github.com/Pluviolithic/lcm-go/internal/logging"
	"github.com/Pluviolithic/lcm-go/internal/selfstat"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "go.uber.org/automaxprocs"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		panic(err)
	}

	format := logging.FormatConsole
	if cfg.LogFormat == "json" {
		format = logging.FormatJSON
	}
	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: format, Component: "lcmdemo"})

	log.Info().Str("url", cfg.URL).Msg("starting lcmdemo")

	sampler, err := selfstat.New(prometheus.DefaultRegisterer, log)
	if err != nil {
		log.Warn().Err(err).Msg("self-stat sampling unavailable")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if sampler != nil {
		go sampler.Run(ctx, 15*time.Second)
	}

	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler()}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()

	registry := lcm.NewRegistry()

	conn, err := registry.Connect(cfg.URL)
	if err != nil {
		log.Fatal().Err(err).Str("url", cfg.URL).Msg("connect failed")
	}
	if conn == nil {
		log.Fatal().Str("url", cfg.URL).Msg("connect returned no connection")
	}
	defer conn.Disconnect()

	sub, err := conn.Subscribe(cfg.SubscribePattern, func(channel string, data []byte) {
		log.Info().Str("channel", channel).Int("bytes", len(data)).Msg("received message")
	})
	if err != nil {
		log.Fatal().Err(err).Msg("subscribe failed")
	}
	if sub != nil {
		defer sub.Unsubscribe()
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = metricsServer.Shutdown(shutdownCtx)
			cancel()
			return
		case <-ticker.C:
			payload := []byte(time.Now().UTC().Format(time.RFC3339Nano))
			if err := conn.Publish(cfg.PublishChannel, payload); err != nil {
				log.Warn().Err(err).Msg("publish failed")
			}
		}
	}
}
