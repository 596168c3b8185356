package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"peerlink/internal/app"
)

const passphraseEnv = "PEERLINK_PASSPHRASE"

var (
	passphrase string
	wire       *app.Wire
	logger     zerolog.Logger
)

func Execute() error {
	flags := app.DefaultConfig()

	root := &cobra.Command{
		Use:           "peerlink",
		Short:         "Signed, end-to-end encrypted messaging between agents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(app.ConfigPath(flags.Home))
			if err != nil {
				return err
			}
			if err := cfg.ApplyFlags(cmd.Flags()); err != nil {
				return err
			}
			logger, err = app.NewLogger(os.Stderr, cfg.LogLevel)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
				return err
			}
			wire, err = app.NewWire(*cfg, logger)
			if err != nil {
				return err
			}
			if passphrase == "" {
				passphrase = os.Getenv(passphraseEnv)
			}
			return nil
		},
	}

	flags.BindFlags(root.PersistentFlags())
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "",
		"passphrase protecting the keystore (or $"+passphraseEnv+")")

	root.AddCommand(
		initCmd(),
		fingerprintCmd(),
		registerCmd(),
		loginCmd(),
		sendCmd(),
		listenCmd(),
		presenceCmd(),
		describeCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return err
	}
	return nil
}

func requirePassphrase() error {
	if passphrase == "" {
		return fmt.Errorf("passphrase required (-p or $%s)", passphraseEnv)
	}
	return nil
}

// client unlocks the keystore and builds a Client for the configured user.
func client() (*app.Client, error) {
	if err := requirePassphrase(); err != nil {
		return nil, err
	}
	c, err := wire.Client(passphrase)
	if err != nil {
		return nil, err
	}
	if c.Username() == "" {
		return nil, errors.New("no account for this server; run register first or pass --user")
	}
	return c, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
