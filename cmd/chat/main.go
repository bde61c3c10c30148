package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"ChatWidget/internal/app/requester"
	"ChatWidget/internal/config"
	"ChatWidget/internal/logging"
	"ChatWidget/internal/service/chat"

	"github.com/fatih/color"
)

const historyCommand = "/history"

func main() {
	cfg, err := config.LoadClient(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(2)
	}

	logger, err := logging.New(cfg.DebugMode)
	if err != nil {
		panic(err)
	}
	defer logging.Sync(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := requester.New(cfg.ServerURL, nil, logger)
	transcript := chat.New(200)
	logger.Debugw("Chat client started", "server", cfg.ServerURL, "conversation_id", req.ConversationID())

	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)
	cyan.Printf("Connected to %s. Type a message, %s to review, Ctrl+C to quit.\n", cfg.ServerURL, historyCommand)

	// Чтение stdin блокирует, поэтому читаем в отдельной горутине
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		sc.Buffer(make([]byte, 0, 64*1024), 64*1024)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Print("you> ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Println()
			return
		case l, ok := <-lines:
			if !ok {
				return
			}
			line = strings.TrimSpace(l)
		}
		if line == "" {
			continue
		}
		if line == historyCommand {
			printHistory(transcript)
			continue
		}

		transcript.Add(chat.RoleUser, line)
		yellow.Println("Bot is typing...")
		reply, err := req.RunOnce(ctx, line)
		switch {
		case errors.Is(err, context.Canceled):
			fmt.Println()
			return
		case errors.Is(err, requester.ErrValidation):
			color.Red("%v\n", err)
			continue
		case err != nil:
			color.Red("Something went wrong. Please try again. %v\n", err)
			continue
		}
		transcript.Add(chat.RoleBot, reply)
		cyan.Print("bot> ")
		fmt.Println(reply)
	}
}

func printHistory(t *chat.Transcript) {
	msgs := t.Messages()
	if len(msgs) == 0 {
		fmt.Println("(no messages yet)")
		return
	}
	for _, m := range msgs {
		fmt.Printf("%-4s %s\n", string(m.Role)+">", m.Content)
	}
}
