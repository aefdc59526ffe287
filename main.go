package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/gregLibert/mifare-session/pkg/config"
	"github.com/gregLibert/mifare-session/pkg/console"
	"github.com/gregLibert/mifare-session/pkg/reader"
	"github.com/gregLibert/mifare-session/pkg/session"
)

type options struct {
	configPath string
	reader     int
	key        string
	keyType    string
	verbose    bool
	logFormat  string
}

func main() {
	var opts options

	root := &cobra.Command{
		Use:   "mifare-session",
		Short: "Interactive MIFARE Classic 1K reader and writer over PC/SC",
		Long: "Reads, prints and writes MIFARE Classic 1K cards on a PC/SC reader.\n" +
			"Every sector is authenticated with one key, the transport key B by default.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			return runSession(cmd.Context(), cfg, logger)
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML configuration file")
	root.PersistentFlags().IntVar(&opts.reader, "reader", 0, "index of the PC/SC reader to use")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log APDU exchanges and session events")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "log format: text|json")
	root.Flags().StringVar(&opts.key, "key", "", "sector key, 12 hex digits (default FFFFFFFFFFFF)")
	root.Flags().StringVar(&opts.keyType, "key-type", "", "sector key type: A|B (default B)")

	readersCmd := &cobra.Command{
		Use:   "readers",
		Short: "List the PC/SC readers and their indexes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, _, err := setup(cmd, opts); err != nil {
				return err
			}
			return listReaders()
		},
	}
	root.AddCommand(readersCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// setup loads the configuration, applies the flags the user set and installs
// the default logger.
func setup(cmd *cobra.Command, opts options) (*config.Config, *slog.Logger, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return nil, nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("reader") {
		cfg.Reader.Index = opts.reader
	}
	if flags.Changed("key") {
		cfg.Auth.Key = opts.key
	}
	if flags.Changed("key-type") {
		cfg.Auth.KeyType = opts.keyType
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = opts.logFormat
	}
	if opts.verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	level, _ := cfg.LogLevel()
	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.Log.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func listReaders() error {
	pcsc, err := reader.EstablishContext()
	if err != nil {
		return err
	}
	defer pcsc.Release()

	readers, err := pcsc.Readers()
	if err != nil {
		return err
	}
	for i, r := range readers {
		fmt.Printf("%d: %s\n", i, r)
	}
	return nil
}

func runSession(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	key, err := cfg.SectorKey()
	if err != nil {
		return err
	}

	pcsc, err := reader.EstablishContext()
	if err != nil {
		return err
	}
	defer func() {
		if err := pcsc.Release(); err != nil {
			logger.Warn("failed to release PC/SC context", "error", err)
		}
	}()

	name, err := pcsc.Reader(cfg.Reader.Index)
	if err != nil {
		return err
	}
	fmt.Printf(">> Using reader: %s\n", name)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	monitor := reader.NewMonitor(pcsc.Connector(name), logger)
	watcher := pcsc.Watcher(name, monitor, cfg.Reader.PollInterval, logger)

	coord := session.NewCoordinator(monitor, session.Options{
		Key:             key,
		ConnectTimeout:  cfg.Reader.ConnectTimeout,
		ConnectAttempts: cfg.Reader.ConnectAttempts,
		Logger:          logger,
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		watcher.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		coord.Run(ctx)
	}()

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		logger.Debug("stdin is not a terminal, reading actions from the stream")
	}

	prompter := console.NewPrompter(console.NewLines(os.Stdin), os.Stdout, cfg.Reader.PollInterval)
	input := session.NewInputProcessor(prompter)
	monitor.OnRemove(input.Cancel)

	op := &console.Operator{
		Session:  coord,
		Input:    input,
		Prompter: prompter,
		Presence: monitor,
		Out:      os.Stdout,
		Animate:  term.IsTerminal(int(os.Stdout.Fd())),
		Logger:   logger,
	}
	runErr := op.Run(ctx)

	cancel()
	if err := pcsc.Cancel(); err != nil {
		logger.Debug("cancel PC/SC context", "error", err)
	}
	wg.Wait()
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}
