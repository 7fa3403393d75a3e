package cmd

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "wait for incoming files",
	Long:  `connect to the relay, print this peer's identifier and accept incoming transfers until interrupted`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		p, err := newPeer()
		if err != nil {
			log.Fatal(err)
		}
		defer p.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		id, err := p.AwaitID(ctx)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Your peer id: %s\n", id)
		fmt.Println("Waiting for incoming files, press Ctrl+C to stop")

		<-ctx.Done()
	},
}
