// Ada is a personal assistant chat bot.
//
// It talks to the owner over Telegram (primary) or a small local web
// chat, runs conversation turns against an Anthropic-compatible model,
// and wires in tools for calendar, email, contacts, tasks, files,
// places and image generation. Configuration is loaded from a single
// YAML file discovered automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	ada serve          Start the assistant
//	ada chat           Talk to the assistant on the terminal
//	ada init [dir]     Initialize a working directory with defaults
//	ada version        Print version and build information
//	ada -o json version  Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/adavila/ada/internal/agent"
	"github.com/adavila/ada/internal/buildinfo"
	"github.com/adavila/ada/internal/calendar"
	"github.com/adavila/ada/internal/config"
	"github.com/adavila/ada/internal/contacts"
	"github.com/adavila/ada/internal/conversation"
	"github.com/adavila/ada/internal/email"
	"github.com/adavila/ada/internal/facts"
	"github.com/adavila/ada/internal/files"
	"github.com/adavila/ada/internal/imagegen"
	"github.com/adavila/ada/internal/llm"
	"github.com/adavila/ada/internal/mqtt"
	"github.com/adavila/ada/internal/places"
	"github.com/adavila/ada/internal/prompts"
	"github.com/adavila/ada/internal/tasks"
	"github.com/adavila/ada/internal/telegram"
	"github.com/adavila/ada/internal/tools"
	"github.com/adavila/ada/internal/web"
)

// ownerID scopes the fact store. Ada is single-tenant: there is exactly
// one owner, whatever transport they arrive on.
const ownerID = "owner"

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run] so the full
// startup-to-shutdown lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the ada command. Arguments are parsed
// by hand: the flag package relies on package-level globals, which makes
// it impossible to call run() concurrently from tests, and the argument
// surface is small enough that manual parsing is clearer than a CLI
// framework.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "chat":
		return runChat(ctx, stdout, configPath)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Ada - Personal Assistant")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: ada [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve        Start the assistant")
	fmt.Fprintln(w, "  chat         Talk to the assistant on the terminal")
	fmt.Fprintln(w, "  init [dir]   Initialize working directory with defaults (default: .)")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./ada.yaml, ~/.config/ada/ada.yaml, /etc/ada/ada.yaml")
	return nil
}

// assistant bundles everything a transport needs to serve turns.
type assistant struct {
	loop          *agent.Loop
	conversations *conversation.Store
	stats         *mqtt.Stats
	cleanup       func()
}

// buildAssistant constructs the stores, the LLM client, the tool
// registry and the agent loop from configuration. Tool services are
// registered only when their section of the config is filled in, so a
// minimal install still works with just the fact and task tools.
func buildAssistant(cfg *config.Config, logger *slog.Logger) (*assistant, error) {
	if cfg.Anthropic.APIKey == "" {
		return nil, fmt.Errorf("anthropic.api_key is not configured")
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory %s: %w", cfg.DataDir, err)
	}

	convStore := conversation.NewStore(
		filepath.Join(cfg.DataDir, "conversations.json"),
		cfg.Agent.MaxHistory,
		logger,
	)
	if err := convStore.Load(); err != nil {
		return nil, fmt.Errorf("load conversations: %w", err)
	}

	factStore, err := facts.NewStore(filepath.Join(cfg.DataDir, "facts.db"))
	if err != nil {
		return nil, fmt.Errorf("open fact store: %w", err)
	}

	taskStore, err := tasks.NewStore(filepath.Join(cfg.DataDir, "tasks.db"))
	if err != nil {
		factStore.Close()
		return nil, fmt.Errorf("open task store: %w", err)
	}

	llmClient := llm.NewAnthropicClient(cfg.Anthropic.APIKey, cfg.Anthropic.Model, logger)

	loc := cfg.Location()

	registry := tools.NewRegistry(logger)
	facts.RegisterTools(registry, factStore, ownerID)
	tasks.RegisterTools(registry, taskStore)

	if cfg.Calendar.URL != "" {
		cal, err := calendar.NewClient(calendar.Config{
			URL:      cfg.Calendar.URL,
			Username: cfg.Calendar.Username,
			Password: cfg.Calendar.Password,
		}, loc, logger)
		if err != nil {
			logger.Warn("calendar disabled", "error", err)
		} else {
			calendar.RegisterTools(registry, cal)
		}
	}
	if cfg.Email.IMAPServer != "" {
		email.RegisterTools(registry, email.NewClient(email.Config{
			IMAPServer: cfg.Email.IMAPServer,
			SMTPServer: cfg.Email.SMTPServer,
			Username:   cfg.Email.Username,
			Password:   cfg.Email.Password,
			From:       cfg.Email.From,
		}, logger))
	}
	if cfg.Contacts.URL != "" {
		book, err := contacts.NewClient(contacts.Config{
			URL:      cfg.Contacts.URL,
			Username: cfg.Contacts.Username,
			Password: cfg.Contacts.Password,
		}, logger)
		if err != nil {
			logger.Warn("contacts disabled", "error", err)
		} else {
			contacts.RegisterTools(registry, book)
		}
	}
	if cfg.Files.URL != "" {
		fc, err := files.NewClient(files.Config{
			URL:      cfg.Files.URL,
			Username: cfg.Files.Username,
			Password: cfg.Files.Password,
		}, logger)
		if err != nil {
			logger.Warn("files disabled", "error", err)
		} else {
			files.RegisterTools(registry, fc)
		}
	}
	if cfg.Places.BaseURL != "" {
		places.RegisterTools(registry, places.NewClient(places.Config{
			BaseURL: cfg.Places.BaseURL,
			Email:   cfg.Places.Email,
		}, logger))
	}
	if cfg.ImageGen.URL != "" {
		imagegen.RegisterTools(registry, imagegen.NewClient(imagegen.Config{
			URL:    cfg.ImageGen.URL,
			APIKey: cfg.ImageGen.APIKey,
			Model:  cfg.ImageGen.Model,
		}, logger))
	}

	persona := ""
	if cfg.PersonaFile != "" {
		persona, err = prompts.LoadPersona(cfg.PersonaFile)
		if err != nil {
			logger.Warn("persona file not loaded, using builtin persona",
				"path", cfg.PersonaFile, "error", err)
			persona = ""
		}
	}
	builder := prompts.NewBuilder(persona, loc)

	stats := mqtt.NewStats()

	loop := agent.NewLoop(logger, llmClient, registry, convStore, factStore, builder, agent.Options{
		Owner:         ownerID,
		Model:         cfg.Anthropic.Model,
		MaxTokens:     cfg.Anthropic.MaxTokens,
		MaxToolRounds: cfg.Agent.MaxToolRounds,
		CallTimeout:   time.Duration(cfg.Agent.CallTimeoutSec) * time.Second,
		Recorder:      stats,
	})

	// Verify the API key early; a failure is logged, not fatal, so the
	// assistant still starts when the network is briefly down.
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer pingCancel()
	if err := llmClient.Ping(pingCtx); err != nil {
		logger.Warn("model endpoint not reachable at startup", "error", err)
	}

	return &assistant{
		loop:          loop,
		conversations: convStore,
		stats:         stats,
		cleanup: func() {
			taskStore.Close()
			factStore.Close()
		},
	}, nil
}

// runServe starts the configured transports and blocks until a
// shutdown signal arrives.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo)
	logger.Info("starting Ada", "version", buildinfo.Version, "built", buildinfo.BuildTime)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// Reconfigure now that the desired level is known. The initial
	// Info-level logger only covers the startup banner.
	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger = newLogger(stdout, level)
	}
	logger.Info("config loaded", "path", cfgPath, "model", cfg.Anthropic.Model)

	asst, err := buildAssistant(cfg, logger)
	if err != nil {
		return err
	}
	defer asst.cleanup()

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 3)
	started := 0

	if cfg.Telegram.Token != "" && cfg.Telegram.OwnerChatID != 0 {
		api := telegram.NewAPI(nil, "", cfg.Telegram.Token)
		bot := telegram.NewBot(api, asst.loop, cfg.Telegram.OwnerChatID, logger)
		started++
		go func() { errCh <- bot.Run(ctx) }()

		if cfg.Telegram.BotName != "" {
			printPairingQR(stdout, cfg.Telegram.BotName)
		}
	} else {
		logger.Info("telegram transport disabled (token or owner_chat_id not set)")
	}

	if cfg.Web.Enabled {
		addr := fmt.Sprintf("%s:%d", cfg.Web.Address, cfg.Web.Port)
		server := web.NewServer(asst.loop, cfg.Web.TokenHash, logger)
		started++
		go func() { errCh <- server.Run(ctx, addr) }()
		fmt.Fprintf(stdout, "Web chat: %s\n", web.LocalURL(addr))
	}

	var presence *mqtt.Publisher
	if cfg.MQTT.Enabled && cfg.MQTT.Broker != "" {
		instanceID, err := mqtt.LoadOrCreateInstanceID(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("load mqtt instance id: %w", err)
		}
		presence = mqtt.NewPublisher(cfg.MQTT, instanceID, cfg.Anthropic.Model, asst.stats, logger)
		go func() {
			if err := presence.Start(ctx); err != nil {
				logger.Error("mqtt publisher failed", "error", err)
			}
		}()
	} else {
		logger.Info("mqtt publishing disabled (not configured)")
	}

	if started == 0 {
		return fmt.Errorf("no transport configured: set telegram.token/owner_chat_id or web.enabled")
	}

	// Block until a transport dies or a signal cancels the context.
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("transport failed: %w", err)
		}
	}

	logger.Info("shutdown signal received")
	if presence != nil {
		offlineCtx, offlineCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer offlineCancel()
		if err := presence.Stop(offlineCtx); err != nil {
			logger.Error("mqtt shutdown failed", "error", err)
		}
	}

	logger.Info("Ada stopped")
	return nil
}

// printPairingQR renders a terminal QR code pointing at the bot's
// Telegram deep link, so pairing from a phone is one camera scan.
func printPairingQR(w io.Writer, botName string) {
	link := "https://t.me/" + strings.TrimPrefix(botName, "@")
	q, err := qrcode.New(link, qrcode.Medium)
	if err != nil {
		fmt.Fprintf(w, "Telegram: %s\n", link)
		return
	}
	fmt.Fprintf(w, "Scan to open the bot in Telegram (%s):\n%s", link, q.ToSmallString(false))
}

// newLogger creates a structured text logger writing to w at the given
// level. All log output in Ada goes through slog; this helper
// standardizes the handler configuration across subcommands.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}

// loadConfig locates and parses the YAML configuration file. If
// explicit is non-empty, that exact path is used (and must exist).
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}
