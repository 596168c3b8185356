package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"peerlink/internal/app"
	"peerlink/internal/hub"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		addr         string
		logLevel     string
		tokenTTL     time.Duration
		challengeTTL time.Duration
	)
	cmd := &cobra.Command{
		Use:          "relay",
		Short:        "Run the in-memory peerlink coordinating server",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := app.NewLogger(os.Stderr, logLevel)
			if err != nil {
				return err
			}
			h := hub.New(hub.Options{TokenTTL: tokenTTL, ChallengeTTL: challengeTTL, Logger: log})
			srv := &http.Server{
				Addr:              addr,
				Handler:           h.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errc := make(chan error, 1)
			go func() {
				log.Info().Str("addr", addr).Msg("relay listening")
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				if !errors.Is(err, http.ErrServerClosed) {
					log.Error().Err(err).Msg("relay stopped")
					return err
				}
				return nil
			case <-ctx.Done():
			}

			log.Info().Msg("shutting down")
			h.Close()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "listen", ":8080", "address to listen on")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	cmd.Flags().DurationVar(&tokenTTL, "token-ttl", hub.DefaultTokenTTL, "lifetime of issued bearer tokens")
	cmd.Flags().DurationVar(&challengeTTL, "challenge-ttl", hub.DefaultChallengeTTL, "lifetime of login challenges")
	return cmd
}
