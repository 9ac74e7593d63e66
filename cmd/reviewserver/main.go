// reviewserver runs the in-memory review service over Connect so the engine
// and the CLI have something to talk to during development.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/domino14/review_engine/config"
	"github.com/domino14/review_engine/internal/auth"
	"github.com/domino14/review_engine/internal/reviewservice"
)

const (
	GracefulShutdownTimeout = 10 * time.Second
)

// DevTokenUser, when set, makes the server print a day-long token for that
// user id at startup.
var DevTokenUser = os.Getenv("DEV_TOKEN_USER")

func main() {
	_ = godotenv.Load()
	cfg := &config.Config{}
	if err := cfg.Load(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("config-load")
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.JWTSecret == "" {
		log.Fatal().Msg("jwt-secret-required")
	}
	secret := []byte(cfg.JWTSecret)

	if DevTokenUser != "" {
		token, err := auth.NewToken(secret, DevTokenUser, "dev", 24*time.Hour)
		if err != nil {
			log.Fatal().Err(err).Msg("dev-token")
		}
		log.Info().Str("user", DevTokenUser).Str("token", token).Msg("dev-token")
	}

	svc := reviewservice.New(reviewservice.WithSeedWords(reviewservice.SampleWords))
	handler := svc.Handler(connect.WithInterceptors(reviewservice.NewAuthInterceptor(secret)))

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: reviewservice.Middleware(log.Logger).Then(handler),
	}
	idleConnsClosed := make(chan struct{})

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info().Msg("got quit signal...")
		ctx, cancel := context.WithTimeout(context.Background(), GracefulShutdownTimeout)

		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Msgf("HTTP server Shutdown: %v", err)
		}
		cancel()
		close(idleConnsClosed)
	}()

	log.Info().Str("addr", cfg.ListenAddr).Msg("review-server-listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("")
	}
	<-idleConnsClosed
	log.Info().Msg("server gracefully shutting down")
}
