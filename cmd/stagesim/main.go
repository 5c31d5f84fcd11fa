package main

import (
	"context"
	"encoding/base64"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/npezzotti/go-audiorooms/internal/stagesim"
)

const defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

var (
	addr           string
	signingKey     string
	rateLimitEvery int64
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:8001", "server address")
	flag.StringVar(&signingKey, "signing-key", defaultSigningKey, "base64 encoded signing key for participant tokens")
	flag.Int64Var(&rateLimitEvery, "rate-limit-every", 0, "answer every nth request with a 429 (0 disables)")
	flag.Parse()

	logger := log.New(os.Stderr, "[stagesim] ", log.LstdFlags)

	key, err := base64.StdEncoding.DecodeString(signingKey)
	if err != nil {
		logger.Fatal("decode signing key:", err)
	}

	registry := stagesim.NewRegistry()
	sim := stagesim.NewServer(logger, registry, key, rateLimitEvery)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sim.Run(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: sim.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s\n", addr)
		errCh <- srv.ListenAndServe()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	cancel()

	shutDownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer shutdownCancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
