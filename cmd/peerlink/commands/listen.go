package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"peerlink/internal/app"
	"peerlink/internal/domain"
)

// listen: stay connected, print incoming messages and connection changes.
// With --stdin, each input line is sent: "@peer text" directly, anything
// else as a broadcast.
func listenCmd() *cobra.Command {
	var stdin bool
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Stay connected and print incoming messages",
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
			fmt.Printf("listening as %s\n", c.Username())

			if stdin {
				go readInput(ctx, c)
			}
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-c.Conn.Done():
					return c.Conn.Err()
				case m := <-c.Messages():
					printMessage(m)
				case u := <-c.Undeliverable():
					fmt.Printf("! undeliverable %s: %v\n", u.ID, u.Err)
				case tr := <-c.Transitions():
					if tr.Err != nil {
						fmt.Printf("* %s (%v)\n", tr.To, tr.Err)
					} else {
						fmt.Printf("* %s\n", tr.To)
					}
				}
			}
		},
	}
	cmd.Flags().BoolVar(&stdin, "stdin", false, "send lines read from standard input")
	return cmd
}

func printMessage(m domain.Message) {
	ts := time.UnixMilli(m.Timestamp).Format(time.TimeOnly)
	to := ""
	if m.IsBroadcast() {
		to = " (all)"
	}
	fmt.Printf("[%s] %s%s <%s>: %s\n", ts, m.FromUser, to, m.Status, m.Content)
}

func readInput(ctx context.Context, c *app.Client) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		peer, text := domain.Broadcast, line
		if strings.HasPrefix(line, "@") {
			name, rest, ok := strings.Cut(line[1:], " ")
			if !ok {
				fmt.Println("! usage: @peer message")
				continue
			}
			peer, text = domain.Username(name), strings.TrimSpace(rest)
		}
		if _, err := c.Send(ctx, peer, text); err != nil {
			fmt.Printf("! %v\n", err)
		}
	}
}
