// queuectl is a small operational tool for the work queue: inspect it,
// drain single entries, clear it, and mint operator tokens for the
// guarded HTTP endpoints.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dmitrijs2005/receiptpipe/internal/logging"
	"github.com/dmitrijs2005/receiptpipe/internal/server/auth"
	"github.com/dmitrijs2005/receiptpipe/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/receiptpipe/internal/server/services"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: queuectl [flags] <command>

commands:
  peek    show the most recently enqueued entry without removing it
  pull    remove and print the oldest entry
  length  print the number of pending entries
  clear   delete all pending entries
  token   mint an operator token (requires -s)

flags:
`)
	flag.PrintDefaults()
}

func run() error {
	dsn := flag.String("d", "", "database DSN")
	queueName := flag.String("q", "receipt_upload_queue", "queue name")
	secret := flag.String("s", "", "secret key for token minting")
	validity := flag.Duration("t", time.Hour, "token validity duration")
	flag.Usage = usage
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		usage()
		return fmt.Errorf("no command given")
	}

	if command == "token" {
		if *secret == "" {
			return fmt.Errorf("token minting requires -s")
		}
		token, err := auth.GenerateOperatorToken([]byte(*secret), *validity)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	}

	if *dsn == "" {
		return fmt.Errorf("command %q requires -d", command)
	}

	manager, err := repomanager.NewPostgresRepositoryManager(*dsn)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	defer func() { _ = manager.Close() }()

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	queue := services.NewQueueService(manager, *queueName, logger)

	ctx := context.Background()

	switch command {
	case "peek":
		payload, err := queue.Peek(ctx)
		if err != nil {
			return err
		}
		return printEntry(payload)
	case "pull":
		payload, err := queue.Pull(ctx)
		if err != nil {
			return err
		}
		return printEntry(payload)
	case "length":
		length, err := queue.Length(ctx)
		if err != nil {
			return err
		}
		fmt.Println(length)
		return nil
	case "clear":
		cleared, err := queue.Clear(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("cleared %d entries\n", cleared)
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func printEntry(payload []byte) error {
	if payload == nil {
		fmt.Println("queue is empty")
		return nil
	}
	var buf any
	if err := json.Unmarshal(payload, &buf); err != nil {
		fmt.Println(string(payload))
		return nil
	}
	pretty, err := json.MarshalIndent(buf, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(pretty))
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
