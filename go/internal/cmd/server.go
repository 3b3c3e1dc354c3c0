package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mcdev12/improvscore/go/internal/config"
	"github.com/mcdev12/improvscore/go/internal/gateway"
	"github.com/mcdev12/improvscore/go/internal/interop"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const serviceVersion = "1.0.0"

func setupServer(cfg config.Config, services *Services) (*http.Server, error) {
	mux := http.NewServeMux()

	if err := registerServices(mux, cfg, services); err != nil {
		return nil, err
	}
	setupHealthCheck(mux)
	setupInfo(mux, services)
	mux.Handle("GET /metrics", services.Metrics.Handler())

	handler := gateway.CORSMiddleware(cfg.AllowedOrigins, mux)

	// HTTP/2 without TLS for Connect clients on the venue network
	return &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}, nil
}

func registerServices(mux *http.ServeMux, cfg config.Config, services *Services) error {
	// websockets, board state and match reads
	services.Gateway.RegisterRoutes(mux, services.Matches)

	// interop over JSON and Connect; the RPC service also mounts reflection
	limiter := interop.NewRateLimiter(cfg.InteropRate, cfg.InteropBurst)
	interop.NewHTTPHandler(services.Translator, limiter, services.Metrics).RegisterRoutes(mux)
	if err := interop.NewRPCService(services.Translator, services.Metrics).RegisterRoutes(mux); err != nil {
		return fmt.Errorf("register interop rpc: %w", err)
	}
	return nil
}

func setupHealthCheck(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}

type serviceInfo struct {
	Service     string `json:"service"`
	Version     string `json:"version"`
	Connections int    `json:"connections"`
	Seq         uint64 `json:"seq"`
	GameStatus  string `json:"gameStatus"`
	Matches     int    `json:"matches"`
}

func setupInfo(mux *http.ServeMux, services *Services) {
	mux.HandleFunc("GET /info", func(w http.ResponseWriter, r *http.Request) {
		st := services.Store.Get()
		info := serviceInfo{
			Service:     "improvscore",
			Version:     serviceVersion,
			Connections: services.Gateway.GetStats().TotalConnections,
			Seq:         services.Store.Seq(),
			GameStatus:  string(st.Rounds.GameStatus),
			Matches:     len(services.Matches.ListMatches()),
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(info); err != nil {
			log.Error().Err(err).Msg("failed to write service info")
		}
	})
}
