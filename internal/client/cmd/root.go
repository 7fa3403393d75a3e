package cmd

import (
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rudransh-shrivastava/drop-it/internal/logger"
	"github.com/rudransh-shrivastava/drop-it/internal/peer"
)

var (
	relayURL    string
	downloadDir string
	historyPath string
	noProgress  bool
)

var rootCmd = &cobra.Command{
	Use:  `drop-it`,
	Long: `drop-it is a peer to peer file sharing application`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&relayURL, "relay", "ws://localhost:8080/ws", "relay websocket URL")
	rootCmd.PersistentFlags().StringVar(&downloadDir, "downloads", "", "directory for received files")
	rootCmd.PersistentFlags().StringVar(&historyPath, "history-file", "", "path of the transfer history database")
	rootCmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "disable the transfer progress bar")

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(receiveCmd)
	rootCmd.AddCommand(peersCmd)
	rootCmd.AddCommand(historyCmd)
}

// newPeer builds a Peer from the persistent flags.
func newPeer() (*peer.Peer, error) {
	return peer.New(peer.Options{
		RelayURL:     relayURL,
		DownloadDir:  downloadDir,
		HistoryPath:  resolveHistoryPath(),
		Logger:       logger.NewLogger(),
		ShowProgress: !noProgress,
	})
}

func resolveHistoryPath() string {
	if historyPath != "" {
		return historyPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "history.sqlite3"
	}
	dir := filepath.Join(home, ".drop-it")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "history.sqlite3"
	}
	return filepath.Join(dir, "history.sqlite3")
}
