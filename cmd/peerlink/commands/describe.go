package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"peerlink/internal/domain"
)

// describe [json]: publish your descriptions blob, or print a peer's with --peer.
func describeCmd() *cobra.Command {
	var peer string
	cmd := &cobra.Command{
		Use:   "describe [json]",
		Short: "Publish your descriptions or show a peer's",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				if peer != "" {
					return fmt.Errorf("--peer cannot be combined with a descriptions argument")
				}
				return c.Describe(cmd.Context(), json.RawMessage(args[0]))
			}

			who := domain.Username(peer)
			if who == "" {
				who = c.Username()
			}
			blob, err := c.Descriptions(cmd.Context(), who)
			if err != nil {
				return err
			}
			fmt.Println(string(blob))
			return nil
		},
	}
	cmd.Flags().StringVar(&peer, "peer", "", "peer whose descriptions to show (default: yourself)")
	return cmd
}
