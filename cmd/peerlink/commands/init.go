package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"peerlink/internal/app"
)

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate identity keys and store them securely",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			if wire.Keystore.Exists() && !force {
				return fmt.Errorf("identity already exists in %s (use --force to replace it)", wire.Config.Home)
			}
			_, fp, err := wire.Identity.GenerateIdentity(passphrase)
			if err != nil {
				return err
			}

			path := app.ConfigPath(wire.Config.Home)
			if _, err := os.Stat(path); os.IsNotExist(err) {
				if err := wire.Config.Save(path); err != nil {
					return err
				}
				fmt.Printf("Config written to %s\n", path)
			}
			fmt.Printf("Identity created.\nFingerprint: %s\n", fp)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing identity")
	return cmd
}
