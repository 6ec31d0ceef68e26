package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-token-service/internal/config"
	"github.com/jrsteele09/go-token-service/server"
	"github.com/jrsteele09/go-token-service/token"
	"github.com/jrsteele09/go-token-service/token/refresh"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const refreshPurgeInterval = time.Hour

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.Load()
	if err != nil {
		return fmt.Errorf("config.Load: %w", err)
	}
	setupLogger(c)
	displayAppname(c.GetAppName())

	refreshTokens := refresh.NewManagerFromConfig(refresh.NewInMemoryRepo(), c)
	tokens, err := token.FromConfig(c, token.WithRefreshStore(refreshTokens))
	if err != nil {
		return fmt.Errorf("token.FromConfig: %w", err)
	}

	log.Info().
		Str("algorithm", c.GetAlgorithm()).
		Str("kid", c.GetKeyID()).
		Int("retired_keys", len(c.GetRetiredKeys())).
		Dur("access_token_lifetime", c.GetAccessTokenLifetime()).
		Msg("Token service ready")

	handler := server.New(tokens, server.WithEnv(c.GetEnv()), server.WithRefreshTokens(refreshTokens))
	httpServer := &http.Server{Addr: c.GetPort(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go purgeExpired(ctx, refreshTokens)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- listenAndServe(httpServer)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-stopSignal():
	}
	return shutdown(httpServer)
}

func setupLogger(c config.EnvConfig) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func purgeExpired(ctx context.Context, refreshTokens *refresh.Manager) {
	ticker := time.NewTicker(refreshPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := refreshTokens.PurgeExpired(); n > 0 {
				log.Debug().Int("purged", n).Msg("Expired refresh tokens removed")
			}
		}
	}
}

func stopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
