package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fw-updater/ota-receiver/internal/flashctl"
	"github.com/fw-updater/ota-receiver/internal/session"
	"github.com/fw-updater/ota-receiver/internal/status"
	"github.com/fw-updater/ota-receiver/internal/transport"
)

// Configuration flags
var (
	serialDevice = flag.String("serial", "/dev/ttyUSB0", "Serial device path")
	baudRate     = flag.Int("baud", 115200, "Serial baud rate")
	frameTimeout = flag.Duration("frame-timeout", 10*time.Second, "Advisory per-frame read timeout")
	appBase      = flag.Uint64("app-base", uint64(flashctl.DefaultAppBase), "Application region base address")
	simulate     = flag.Bool("simulate", false, "Use an in-memory flash region instead of real hardware")
	simSize      = flag.Int("simulate-size", int(flashctl.DefaultAppRegionSize), "Size of the simulated flash region, in bytes")
	redisAddr    = flag.String("redis-addr", "", "Redis server address for status reporting (empty disables it)")
	redisPass    = flag.String("redis-pass", "", "Redis password")
	redisDB      = flag.Int("redis-db", 0, "Redis database number")
)

func main() {
	flag.Parse()

	logger := log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lmicroseconds)
	logger.Printf("Starting OTA update receiver")
	logger.Printf("Serial device: %s", *serialDevice)
	logger.Printf("Baud rate: %d", *baudRate)
	logger.Printf("Application base: 0x%08x", *appBase)

	var prog flashctl.Programmer
	if *simulate {
		logger.Printf("Using simulated flash region of %d bytes (no real hardware involved)", *simSize)
		prog = flashctl.NewMemController(uint32(*appBase), *simSize)
	} else {
		logger.Fatalf("real flash programming requires a board-specific flashctl.Programmer; pass -simulate for a software run")
	}

	port, err := transport.OpenSerial(*serialDevice, *baudRate)
	if err != nil {
		logger.Fatalf("Failed to open serial port: %v", err)
	}
	defer port.Close()
	logger.Printf("Connected to serial port")

	var pub session.Publisher = status.NoopPublisher{}
	if *redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: *redisAddr, Password: *redisPass, DB: *redisDB})
		defer client.Close()
		if err := client.Ping(context.Background()).Err(); err != nil {
			logger.Printf("Warning: Redis unreachable, status reporting disabled: %v", err)
		} else {
			pub = status.NewRedisPublisher(context.Background(), client, logger)
			logger.Printf("Reporting session status to Redis at %s", *redisAddr)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Printf("Shutdown requested, cancelling session")
		cancel()
	}()

	logger.Printf("Waiting for the OTA data...")
	outcome, err := session.Run(ctx, port, prog, uint32(*appBase), *frameTimeout, pub, logger)
	if err != nil {
		logger.Fatalf("Session ended in failure: %v", err)
	}
	logger.Printf("Session ended: %s", outcome)
}
