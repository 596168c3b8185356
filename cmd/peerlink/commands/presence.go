package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func presenceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presence",
		Short: "List online and offline peers",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}
			p, err := c.ActivePeers(cmd.Context())
			if err != nil {
				return err
			}
			for _, u := range p.Online {
				fmt.Printf("online   %s\n", u)
			}
			for _, u := range p.Offline {
				fmt.Printf("offline  %s\n", u)
			}
			return nil
		},
	}
}
