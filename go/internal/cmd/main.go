package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcdev12/improvscore/go/internal/config"
	"github.com/mcdev12/improvscore/go/internal/gateway"
	"github.com/mcdev12/improvscore/go/internal/interop"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("scoreboard server failed")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	persister, closePersister, err := setupPersister(ctx, cfg)
	if err != nil {
		return err
	}
	defer closePersister()

	arch, err := setupArchive(ctx, cfg)
	if err != nil {
		return err
	}
	if arch != nil {
		defer arch.Close()
	}

	var (
		js   jetstream.JetStream
		sink gateway.EventSink
	)
	if cfg.NATSURL != "" {
		nc, stream, err := setupNATS(cfg.NATSURL)
		if err != nil {
			return err
		}
		defer nc.Close()
		js = stream
		sink = gateway.NewNATSMirror(nc, cfg.MirrorPrefix)
		log.Info().Str("nats_url", cfg.NATSURL).Str("prefix", cfg.MirrorPrefix).Msg("mirroring board events")
	}

	services := setupServices(cfg, persister, arch, sink)
	if err := services.Store.Load(ctx); err != nil {
		return err
	}

	server, err := setupServer(cfg, services)
	if err != nil {
		return err
	}

	log.Info().
		Str("port", cfg.Port).
		Str("persister", cfg.Persister).
		Bool("archive", arch != nil).
		Bool("pacing_consumer", cfg.ConsumerEnabled).
		Msg("starting scoreboard server")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		services.Store.Run(gctx)
		return nil
	})
	g.Go(func() error {
		services.Timer.Run(gctx, cfg.BoardTickInterval)
		return nil
	})
	g.Go(func() error {
		return services.Gateway.Start(gctx)
	})
	g.Go(func() error {
		services.Reports.Run(gctx)
		return nil
	})
	if arch != nil {
		g.Go(func() error {
			arch.Run(gctx)
			return nil
		})
	}

	if cfg.ConsumerEnabled {
		consumerConfig := interop.DefaultConsumerConfig()
		consumerConfig.StreamName = cfg.ConsumerStream
		consumerConfig.ConsumerName = cfg.ConsumerName
		consumerConfig.SubjectFilter = cfg.ConsumerSubject

		consumer, err := interop.NewEventConsumer(ctx, js, services.Translator, services.Metrics, consumerConfig)
		if err != nil {
			return fmt.Errorf("create pacing consumer: %w", err)
		}
		g.Go(func() error {
			return consumer.Start(gctx)
		})
	}

	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	// shutdown once a signal arrives or any worker fails
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down scoreboard server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		services.Timers.StopAll()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	log.Info().Msg("scoreboard shutdown complete")
	return err
}
