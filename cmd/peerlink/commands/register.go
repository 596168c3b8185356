package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"peerlink/internal/app"
	"peerlink/internal/domain"
)

// register <username>: publish the local public keys under <username>.
func registerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register <username>",
		Short: "Register your public keys with the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			id, err := wire.Identity.LoadIdentity(passphrase)
			if err != nil {
				return err
			}
			c, err := app.NewClient(app.ClientOptions{Config: wire.Config, Identity: id, Logger: logger})
			if err != nil {
				return err
			}

			username := domain.Username(args[0])
			if err := c.Register(cmd.Context(), username); err != nil {
				return err
			}
			if err := wire.RememberAccount(username); err != nil {
				return err
			}
			fmt.Printf("Registered %s on %s\nFingerprint: %s\n", username, wire.Config.ServerURL, c.Fingerprint())
			return nil
		},
	}
}
