package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/omochice/relay-chat/internal/config"
	"github.com/omochice/relay-chat/internal/relay"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const statsInterval = 30 * time.Second

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run a chat relay accepting WebSocket and TCP clients on one port",
	Args:  cobra.NoArgs,
	RunE:  runRelay,
}

func init() {
	flags := rootCmd.Flags()
	flags.String("host", "", "interface to listen on (env RELAY_HOST)")
	flags.Int("port", 0, "port to listen on (env RELAY_PORT)")
	flags.String("codec", "", "wire codec: line or envelope (env CHAT_CODEC)")
	flags.String("log-level", "", "DEBUG, INFO, WARN or ERROR (env LOG_LEVEL)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runRelay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	codec, err := cfg.NewCodec()
	if err != nil {
		return err
	}

	srv := relay.New(relay.Config{
		Address:   cfg.Address(),
		Codec:     codec,
		SendQueue: cfg.SendQueue,
		RateLimit: rate.Limit(cfg.RateLimit),
		Burst:     cfg.Burst,
		Logger:    log,
	})
	if err := srv.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		log.Info("Shutting down gracefully...")
		srv.Stop()
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				log.Debug("relay stats", "clients", srv.ClientCount())
			}
		}
	})
	return g.Wait()
}

// loadConfig reads the environment, then applies flags the user set.
func loadConfig(cmd *cobra.Command) (config.Relay, error) {
	cfg, err := config.LoadRelay()
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		cfg.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("codec") {
		cfg.Codec, _ = flags.GetString("codec")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}
