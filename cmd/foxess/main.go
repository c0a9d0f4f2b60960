// cmd/foxess is an operator CLI over the FoxESS access layer: query device
// data through the cache and rate limiter, and inspect or reclaim the cache.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/holger1411/foxess-mcp-server/cache"
	"github.com/holger1411/foxess-mcp-server/foxess"
	"github.com/holger1411/foxess-mcp-server/internal/config"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" || args[0] == "-h" {
		usage()
		return nil
	}
	if args[0] == "version" || args[0] == "--version" || args[0] == "-v" {
		fmt.Println("foxess v0.1.0")
		return nil
	}

	// Missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if os.Getenv("FOXESS_DEBUG") == "" {
		logger = logger.Level(zerolog.InfoLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cred, err := foxess.NewCredential(cfg.APIKey, cfg.DeviceSN)
	if err != nil {
		return err
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}

	client := foxess.New(cred,
		foxess.WithBaseURL(cfg.BaseURL),
		foxess.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		foxess.WithStore(store),
		foxess.WithLogger(logger),
	)

	ctx := context.Background()

	switch args[0] {
	case "devices":
		return printResult(client.DeviceList(ctx))
	case "device":
		return printResult(client.DeviceDetail(ctx))
	case "realtime":
		return printResult(client.RealtimeData(ctx, args[1:]))
	case "history":
		days := 1
		vars := args[1:]
		if len(args) > 1 {
			if n, err := strconv.Atoi(args[1]); err == nil {
				days = n
				vars = args[2:]
			}
		}
		end := time.Now()
		start := end.AddDate(0, 0, -days)
		return printResult(client.HistoricalData(ctx, start, end, vars, ""))
	case "report":
		reportType := "day"
		if len(args) > 1 {
			reportType = args[1]
		}
		return printResult(client.ReportData(ctx, reportType, time.Time{}))
	case "generation":
		return printResult(client.GenerationData(ctx))
	case "quota":
		fmt.Printf("remaining requests today: %d\n", client.Limiter().RemainingToday())
		return nil
	case "cache":
		return runCache(store, args[1:])
	default:
		return fmt.Errorf("unknown command: %s (try 'foxess help')", args[0])
	}
}

func runCache(store *cache.Store, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: foxess cache <stats|sweep|clear [filter]>")
	}
	switch args[0] {
	case "stats":
		return printJSON(store.Stats())
	case "sweep":
		fmt.Printf("swept %d expired entries\n", store.SweepExpired())
		return nil
	case "clear":
		filter := ""
		if len(args) > 1 {
			filter = args[1]
		}
		fmt.Printf("cleared %d entries\n", store.Clear(filter))
		return nil
	default:
		return fmt.Errorf("unknown cache command: %s", args[0])
	}
}

func openStore(cfg config.Config, logger zerolog.Logger) (*cache.Store, error) {
	opts := []cache.Option{
		cache.WithLogger(logger),
		cache.WithMemorySize(cfg.CacheSize),
		cache.WithDefaultTTL(cfg.CacheTTL),
	}
	if cfg.CacheEncrypt {
		var (
			cipher *cache.Cipher
			err    error
		)
		if cfg.CacheKey != "" {
			cipher, err = cache.NewCipherFromPassphrase(cfg.CacheKey)
		} else {
			cipher, err = cache.NewEphemeralCipher()
		}
		if err != nil {
			return nil, err
		}
		opts = append(opts, cache.WithCipher(cipher))
	}
	return cache.NewStore(cfg.CacheDir, opts...)
}

func printResult(result json.RawMessage, err error) error {
	if err != nil {
		return err
	}
	var out any
	if err := json.Unmarshal(result, &out); err != nil {
		fmt.Println(string(result))
		return nil
	}
	return printJSON(out)
}

func printJSON(v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}

func usage() {
	fmt.Println("Usage: foxess <command> [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  devices                  List accessible devices")
	fmt.Println("  device                   Show configured device detail")
	fmt.Println("  realtime [vars...]       Current telemetry, optionally filtered")
	fmt.Println("  history [days] [vars...] Historical data (default: last day)")
	fmt.Println("  report [day|month|year]  Aggregated production report")
	fmt.Println("  generation               Cumulative generation totals")
	fmt.Println("  quota                    Remaining API requests today")
	fmt.Println("  cache stats|sweep|clear  Inspect or reclaim the response cache")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  FOXESS_API_KEY           API token (required, UUID format)")
	fmt.Println("  FOXESS_DEVICE_SN         Device serial number (required)")
	fmt.Println("  FOXESS_CACHE_KEY         Passphrase for disk-cache encryption")
	fmt.Println("  FOXESS_CACHE_DIR         Cache directory (default: temp dir)")
}
