package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/wolfman30/realty-lead-agent/internal/app/bootstrap"
	appconfig "github.com/wolfman30/realty-lead-agent/internal/config"
	"github.com/wolfman30/realty-lead-agent/internal/conversation"
	"github.com/wolfman30/realty-lead-agent/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	// Keep the terminal readable: logs go to stderr in text form.
	logger := logging.NewWithWriter(cfg.LogLevel, "text", os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	agent, err := bootstrap.BuildAgent(ctx, cfg, logger, nil)
	if err != nil {
		logger.Error("failed to build agent", "error", err)
		os.Exit(1)
	}
	defer agent.Close()

	fmt.Printf("%s property assistant. Type 'status' for lead status, 'exit' to leave.\n\n", cfg.CompanyName)
	if err := run(ctx, agent.Orchestrator, uuid.NewString(), os.Stdin, os.Stdout); err != nil {
		logger.Error("chat ended", "error", err)
		os.Exit(1)
	}
}

// run drives one terminal session until EOF, an exit word or cancellation.
func run(ctx context.Context, engine conversation.Engine, sessionID string, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "you> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit", "bye":
			fmt.Fprintln(out, "bye!")
			return nil
		case "status":
			printStatus(ctx, engine, sessionID, out)
			continue
		}

		res, err := engine.HandleTurn(ctx, sessionID, line)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "bot [%s]>\n%s\n", res.Stage, renderPayload(res.Payload))
	}
}

func printStatus(ctx context.Context, engine conversation.Engine, sessionID string, out io.Writer) {
	snap, err := engine.Status(ctx, sessionID)
	if errors.Is(err, conversation.ErrSessionNotFound) {
		fmt.Fprintln(out, "no conversation yet")
		return
	}
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
		return
	}
	fmt.Fprint(out, renderStatus(snap))
}
