package cmd

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send target_id file...",
	Short: "send files to a peer",
	Long:  `send one or more files to the peer with the given identifier, over a direct data channel`,
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		targetID := args[0]
		paths := args[1:]

		p, err := newPeer()
		if err != nil {
			log.Fatal(err)
		}
		defer p.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if _, err := p.AwaitID(ctx); err != nil {
			log.Fatal(err)
		}
		if err := p.SendFiles(ctx, targetID, paths); err != nil {
			log.Fatal(err)
		}
	},
}
