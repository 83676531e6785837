// Package main is the guia CLI entry point.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/guia/internal/cli"
	"github.com/hyperjump/guia/internal/config"
	"github.com/hyperjump/guia/internal/models"
	"github.com/hyperjump/guia/internal/server"
	"github.com/hyperjump/guia/internal/watcher"
	"github.com/hyperjump/guia/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/guia/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			cfg.Storage.DatabasePath = expandHome(cfg.Storage.DatabasePath)
			cfg.Storage.BleveIndexPath = expandHome(cfg.Storage.BleveIndexPath)
			cfg.Storage.VectorIndexPath = expandHome(cfg.Storage.VectorIndexPath)
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func expandHome(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, p)
	}
	return p
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "chat":
		runChat()
	case "ask":
		runAsk()
	case "ingest":
		runIngest()
	case "delete":
		runDelete()
	case "topics":
		runTopics()
	case "version", "--version", "-v":
		fmt.Printf("guia version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads the config and builds the logger; it exits on failure.
func setup(configPath string, debugFlag bool) (*config.Config, string, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debug := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, resolved, logger
}

func mustComponents(cfg *config.Config, logger *zap.Logger) *Components {
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return components
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolved, logger := setup(*configPath, *debug)
	defer logger.Sync()
	logger.Info("config loaded", zap.String("config_path", resolved), zap.Bool("debug", cfg.Debug || *debug))

	components := mustComponents(cfg, logger)
	defer components.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sweeper := components.Sessions.StartSweeper(ctx, cfg.Session.SweepInterval)
	defer sweeper.Stop()

	if files := watchedFiles(cfg); len(files) > 0 {
		w := watcher.New(files, reloadHandler(components, logger),
			watcher.WithLogger(logger),
			watcher.WithRemoveHandler(reloadHandler(components, logger)),
		)
		if err := w.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	srv := server.NewServer(server.Deps{
		Conversation: components.Orchestrator,
		Topics:       components.Topics,
		Ingester:     components,
		Storage:      components.Storage,
		Vectors:      components.VectorIndex,
		Sessions:     components.Sessions,
		Logger:       logger,
	}, cfg)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("Server failed", zap.Error(err))
		}
	}

	logger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// watchedFiles lists the files the server reloads on change.
func watchedFiles(cfg *config.Config) []string {
	var files []string
	if cfg.Intent.Watch && cfg.Intent.VocabularyPath != "" {
		files = append(files, cfg.Intent.VocabularyPath)
	}
	if cfg.Ingest.Watch {
		files = append(files, cfg.Ingest.Manifests...)
	}
	return files
}

// reloadHandler re-reads the vocabulary file or re-ingests a manifest.
func reloadHandler(c *Components, logger *zap.Logger) watcher.Handler {
	vocab := filepath.Clean(c.Config.Intent.VocabularyPath)
	return func(ctx context.Context, path string) error {
		if path == vocab {
			c.RefreshVocabulary(ctx)
			logger.Info("vocabulary reloaded", zap.String("path", path), zap.Int("terms", c.Vocabulary.Len()))
			return nil
		}
		if _, err := os.Stat(path); err != nil {
			logger.Warn("manifest removed; indexed materials are kept", zap.String("path", path))
			return nil
		}
		stats, err := c.IngestManifest(ctx, path)
		logger.Info("manifest re-ingested",
			zap.String("path", path),
			zap.Int("documents", stats.Documents),
			zap.Int("fragments", stats.Fragments),
			zap.Int("failed", stats.Failed))
		return err
	}
}

// argsReorder moves any flags (and their values) that appear after the positional
// arguments to the front so that flag.Parse sees them. The flag package stops at the
// first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// buildMessage joins all positional args with spaces so multi-word messages
// work the same with or without shell quoting.
func buildMessage(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// conversationFor returns an HTTP client when serverURL is set, otherwise the
// in-process orchestrator. The returned func releases resources.
func conversationFor(serverURL string, cfg *config.Config, logger *zap.Logger) (conversation, func()) {
	if serverURL != "" {
		return newHTTPClient(serverURL), func() {}
	}
	components := mustComponents(cfg, logger)
	return components.Orchestrator, components.Close
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = run in-process)")
	sessionID := fs.String("session", "", "session id (default: a new session)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	message := buildMessage(fs.Args())
	if message == "" {
		fmt.Println("Usage: guia ask [flags] <message>")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, _, logger := setup(*configPath, false)
	defer logger.Sync()

	conv, closeFn := conversationFor(*serverURL, cfg, logger)
	defer closeFn()
	if *sessionID == "" {
		*sessionID = uuid.NewString()
	}
	res, err := conv.ProcessTurn(context.Background(), *sessionID, message)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Turn failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteTurn(os.Stdout, res, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runChat() {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = run in-process)")
	sessionID := fs.String("session", "", "session id (default: a new session)")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, _, logger := setup(*configPath, *debug)
	defer logger.Sync()

	conv, closeFn := conversationFor(*serverURL, cfg, logger)
	defer closeFn()
	if *sessionID == "" {
		*sessionID = uuid.NewString()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := chatLoop(ctx, conv, *sessionID, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Chat failed: %v\n", err)
		os.Exit(1)
	}
}

// chatLoop greets, then runs one turn per input line until EOF or an exit word.
func chatLoop(ctx context.Context, conv conversation, sessionID string, in io.Reader, out io.Writer) error {
	res, err := conv.Greet(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := cli.WriteTurn(out, res, cli.OutputText); err != nil {
		return err
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if isExit(line) {
			return nil
		}
		res, err := conv.ProcessTurn(ctx, sessionID, line)
		if err != nil {
			if errors.Is(err, models.ErrEmptyUtterance) {
				continue
			}
			return err
		}
		if err := cli.WriteTurn(out, res, cli.OutputText); err != nil {
			return err
		}
	}
}

func isExit(line string) bool {
	switch strings.ToLower(line) {
	case "sair", "tchau", "exit", "quit", "/q":
		return true
	}
	return false
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: guia ingest [flags] <manifest.yaml>...")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, _, logger := setup(*configPath, *debug)
	defer logger.Sync()
	components := mustComponents(cfg, logger)
	defer components.Close()

	failed := false
	for _, path := range fs.Args() {
		stats, err := components.IngestManifest(context.Background(), path)
		if werr := cli.WriteIngestStats(os.Stdout, stats, format); werr != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", werr)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed = true
		}
	}
	if failed {
		components.Close()
		os.Exit(1)
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: guia delete [flags] <material-url-or-name>")
		os.Exit(1)
	}
	key := buildMessage(fs.Args())
	cfg, _, logger := setup(*configPath, false)
	defer logger.Sync()
	components := mustComponents(cfg, logger)
	defer components.Close()

	if err := components.DeleteMaterial(context.Background(), key); err != nil {
		fmt.Fprintf(os.Stderr, "Deletion failed: %v\n", err)
		components.Close()
		os.Exit(1)
	}
	fmt.Printf("Material deleted: %s\n", key)
}

func runTopics() {
	fs := flag.NewFlagSet("topics", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = read storage directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var list []models.Topic
	if *serverURL != "" {
		list, err = newHTTPClient(*serverURL).ListTopics(context.Background())
	} else {
		cfg, _, logger := setup(*configPath, false)
		defer logger.Sync()
		components := mustComponents(cfg, logger)
		defer components.Close()
		list, err = components.Topics.ListTopics(context.Background())
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Listing topics failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteTopics(os.Stdout, list, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`guia - Conversational study assistant over indexed learning materials

Usage:
  guia server [flags]              Start the HTTP server
  guia chat [flags]                Interactive chat session on stdin/stdout
  guia ask [flags] <message>       Run a single turn
  guia ingest [flags] <manifest>   Index the materials listed in a YAML manifest
  guia delete [flags] <key>        Delete a material by URL or display name
  guia topics [flags]              List the topic index
  guia version                     Show version
  guia help                        Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/guia/config.yaml, or ./config.yaml when present)
  --debug            Enable debug logging (server, chat, ingest)

Chat/Ask Flags:
  --server string    Server URL; empty runs the assistant in-process (default: "")
  --session string   Session id (default: a new session)
  --output string    Output format for ask: text or json (default: text)

Topics Flags:
  --server string    Server URL; empty reads storage directly
  --output string    Output format: text or json (default: text)

Examples:
  guia ingest materiais.yaml
  guia server
  guia chat
  guia chat --server http://localhost:8080
  guia ask "o que é fotossíntese?"
  guia ask --output json "quero estudar mitose"
  guia topics --output json
  guia delete https://materiais.exemplo/mitose.pdf`)
}
