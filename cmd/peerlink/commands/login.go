package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authenticate with the server and report the session lifetime",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}
			sess, err := c.Login(cmd.Context(), "")
			if err != nil {
				return err
			}
			if sess.ExpiresAt.IsZero() {
				fmt.Printf("Logged in as %s\n", c.Username())
				return nil
			}
			fmt.Printf("Logged in as %s until %s\n", c.Username(), sess.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}
}
