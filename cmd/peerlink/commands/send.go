package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"peerlink/internal/app"
	"peerlink/internal/domain"
)

// send <peer> <message>: encrypt, sign and deliver a message to <peer>.
// A peer of "broadcast" signs the message for everyone online.
func sendCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "send <peer> <message>",
		Short: "Encrypt and send a message to a peer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			if err := c.Connect(ctx); err != nil {
				return err
			}
			defer func() { _ = c.Disconnect() }()

			msg, err := c.Send(ctx, domain.Username(args[0]), args[1])
			if err != nil {
				return err
			}
			if err := flush(c, timeout); err != nil {
				return err
			}
			fmt.Printf("sent %s\n", msg.ID)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "how long to wait for the message to leave the queue")
	return cmd
}

// flush waits until the outbound queue drains.
func flush(c *app.Client, timeout time.Duration) error {
	deadline := time.After(timeout)
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for c.Conn.Pending() > 0 {
		select {
		case u := <-c.Undeliverable():
			return fmt.Errorf("message %s: %w", u.ID, u.Err)
		case <-c.Conn.Done():
			if err := c.Conn.Err(); err != nil {
				return err
			}
			return errors.New("connection closed before the message was sent")
		case <-deadline:
			return fmt.Errorf("message still queued after %s", timeout)
		case <-tick.C:
		}
	}
	return nil
}
