package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/adavila/ada/internal/buildinfo"
	"github.com/adavila/ada/internal/llm"
)

// runChat is a terminal REPL against the full assistant: same loop,
// same tools, same history file as serve. Useful for trying things out
// without a Telegram round trip.
func runChat(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := newLogger(io.Discard, slog.LevelInfo)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	asst, err := buildAssistant(cfg, logger)
	if err != nil {
		return err
	}
	defer asst.cleanup()

	fmt.Fprintf(stdout, "Ada %s (config: %s). Escribe /salir para terminar.\n", buildinfo.Version, cfgPath)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024)

	for {
		fmt.Fprint(stdout, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/salir" || line == "/exit" || line == "/quit" {
			break
		}

		reply := asst.loop.Respond(ctx, "cli:main", llm.UserText(line))
		fmt.Fprintf(stdout, "%s\n", reply)

		if ctx.Err() != nil {
			break
		}
	}

	fmt.Fprintln(stdout, "Hasta luego.")
	return scanner.Err()
}
