package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/rudransh-shrivastava/drop-it/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "list completed transfers",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		store, err := history.Open(resolveHistoryPath())
		if err != nil {
			log.Fatal(err)
		}

		transfers, err := store.List()
		if err != nil {
			log.Fatal(err)
		}
		if len(transfers) == 0 {
			fmt.Println("No completed transfers")
			return
		}

		for _, t := range transfers {
			when := time.Unix(t.CompletedAt, 0).Format("2006-01-02 15:04:05")
			fmt.Printf("%s  %-8s  %s (%d bytes) peer %s\n", when, t.Direction, t.FileName, t.Size, t.PeerID)
		}
	},
}
