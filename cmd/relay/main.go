package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/rudransh-shrivastava/drop-it/internal/logger"
	"github.com/rudransh-shrivastava/drop-it/internal/relay"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	publicURL := flag.String("public-url", "", "public URL reported by GET /network")
	flag.Parse()

	server, err := relay.NewServer(relay.Options{
		Addr:      *addr,
		PublicURL: *publicURL,
		Logger:    logger.NewLogger(),
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil && err != context.Canceled {
		log.Fatal(err)
	}
}
