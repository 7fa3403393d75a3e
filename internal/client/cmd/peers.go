package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
)

// peersWait gives the relay time to answer the discovery request before the
// snapshot is printed.
const peersWait = 2 * time.Second

var peersCmd = &cobra.Command{
	Use:   "peers",
	Short: "list the peers connected to the relay",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		p, err := newPeer()
		if err != nil {
			log.Fatal(err)
		}
		defer p.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		id, err := p.AwaitID(ctx)
		if err != nil {
			log.Fatal(err)
		}
		if err := p.Discover(); err != nil {
			log.Fatal(err)
		}
		time.Sleep(peersWait)

		peers := p.PeerList()
		fmt.Printf("Your peer id: %s\n", id)
		if len(peers) == 0 {
			fmt.Println("No other peers connected")
			return
		}
		for _, peerID := range peers {
			fmt.Println(peerID)
		}
	},
}
