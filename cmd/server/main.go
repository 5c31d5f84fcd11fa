package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/npezzotti/go-audiorooms/internal/api"
	"github.com/npezzotti/go-audiorooms/internal/config"
	"github.com/npezzotti/go-audiorooms/internal/database"
	"github.com/npezzotti/go-audiorooms/internal/events"
	"github.com/npezzotti/go-audiorooms/internal/queue"
	"github.com/npezzotti/go-audiorooms/internal/reaper"
	"github.com/npezzotti/go-audiorooms/internal/rooms"
	"github.com/npezzotti/go-audiorooms/internal/stage"
	"github.com/npezzotti/go-audiorooms/internal/stats"
	"github.com/npezzotti/go-audiorooms/internal/syncer"
)

const defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	dsn            string
	redisAddr      string
	stageAPIURL    string
	eventFeedURL   string
	signingKey     string
	allowedOrigins stringSliceFlag
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&dsn, "dsn", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable", "database connection string")
	flag.StringVar(&redisAddr, "redis-addr", "localhost:6379", "redis address for the work queue")
	flag.StringVar(&stageAPIURL, "stage-api-url", "http://localhost:8001", "base URL of the media-session provider API")
	flag.StringVar(&eventFeedURL, "event-feed-url", "ws://localhost:8001/v1/events", "websocket URL of the provider event feed")
	flag.StringVar(&signingKey, "signing-key", defaultSigningKey, "base64 encoded signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	logger := log.New(os.Stderr, "[audiorooms] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, dsn, redisAddr, stageAPIURL, eventFeedURL, signingKey, allowedOrigins)
	if err != nil {
		logger.Fatal("config:", err)
	}

	dbConn, err := database.NewPgRoomRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("redis ping:", err)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)
	for _, metric := range []string{
		stats.RoomsCreated,
		stats.RoomsJoined,
		stats.RoomsReaped,
		stats.ReconcilePasses,
		stats.ReconcileFailures,
		stats.StageEvents,
	} {
		statsUpdater.RegisterMetric(metric)
	}

	stageClient := stage.NewRetryingClient(stage.NewHTTPClient(cfg.StageAPIURL))

	roomService := rooms.NewRoomService(logger, dbConn, stageClient, statsUpdater)
	srv := api.NewRoomsApp(mux, logger, roomService, dbConn, cfg)

	activeRoomsQueue := queue.NewRedisQueue(redisClient, "audiorooms:active-rooms", cfg.DedupWindow, logger)
	scheduler := syncer.NewScheduler(logger, dbConn, activeRoomsQueue)
	worker := syncer.NewWorker(logger, dbConn, stageClient, activeRoomsQueue, statsUpdater)
	roomReaper := reaper.NewReaper(logger, dbConn, stageClient, statsUpdater, cfg.StaleAfter)
	listener := events.NewListener(logger, dbConn, statsUpdater, cfg.EventFeedURL)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go listener.Run(ctx)
	go worker.Run(ctx)

	go func() {
		ticker := time.NewTicker(cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := scheduler.Tick(ctx); err != nil {
					logger.Println("scheduler tick:", err)
				}
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(cfg.ReapInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := roomReaper.Run(ctx); err != nil {
					logger.Println("reaper:", err)
				}
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
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
