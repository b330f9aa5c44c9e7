package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/omochice/relay-chat/internal/config"
	"github.com/omochice/relay-chat/internal/console"
	"github.com/omochice/relay-chat/internal/session"
	"github.com/omochice/relay-chat/internal/transport"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "client [name]",
	Short: "Chat through a relay from the terminal",
	Long: `Connects to a relay over ws://, wss:// or tcp:// and joins the chat.
Type a message and press enter to send it; /help lists the commands.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClient,
}

func init() {
	flags := rootCmd.Flags()
	flags.String("url", "", "relay url (env CHAT_RELAY_URL)")
	flags.String("codec", "", "wire codec: line or envelope (env CHAT_CODEC)")
	flags.Duration("join-timeout", 0, "give up joining after this long, 0 waits forever (env CHAT_JOIN_TIMEOUT)")
	flags.String("log-level", "", "DEBUG, INFO, WARN or ERROR (env LOG_LEVEL)")
	flags.Bool("no-color", false, "disable colored output (env NO_COLOR)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runClient(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	log := newLogger(cfg.LogLevel)

	codec, err := cfg.NewCodec()
	if err != nil {
		return err
	}

	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()
	name := cfg.Name
	if name == "" {
		if name, err = promptName(in, out); err != nil {
			return err
		}
	}

	s := session.New(session.Options{
		URL:         cfg.RelayURL,
		Dialer:      transport.Dialer{Binary: codec.Binary()},
		Codec:       codec,
		JoinTimeout: cfg.JoinTimeout,
		SendQueue:   cfg.SendQueue,
		Logger:      log,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := console.New(s, out, console.Options{Plain: cfg.NoColor, Logger: log})
	return c.Run(ctx, name, in)
}

func promptName(in *bufio.Reader, out io.Writer) (string, error) {
	_, _ = fmt.Fprint(out, "name: ")
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read name: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// loadConfig reads the environment, then applies the name argument and the
// flags the user set.
func loadConfig(cmd *cobra.Command, args []string) (config.Client, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return cfg, err
	}

	if len(args) == 1 {
		cfg.Name = args[0]
	}
	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.RelayURL, _ = flags.GetString("url")
	}
	if flags.Changed("codec") {
		cfg.Codec, _ = flags.GetString("codec")
	}
	if flags.Changed("join-timeout") {
		cfg.JoinTimeout, _ = flags.GetDuration("join-timeout")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("no-color") {
		cfg.NoColor, _ = flags.GetBool("no-color")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

// newLogger logs to stderr so diagnostics stay out of the chat view.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
