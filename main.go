package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"

	"github.com/Wex47/Orbi/internal/agent/graph"
	"github.com/Wex47/Orbi/internal/agent/model"
	logx "github.com/Wex47/Orbi/pkg/logger"
)

const defaultThreadID = "1"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		threadID string
		once     bool
	)

	cmd := &cobra.Command{
		Use:   "orbi",
		Short: "Orbi, a travel assistant in your terminal",
		Long: `Orbi answers travel questions: flights, climate, local time, visa rules,
travel warnings and Israeli embassies. Type "exit" or "quit" to leave.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if err := godotenv.Load(".env"); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: Could not load .env file: %v\n", err)
			}
			var cfg AppConfig
			if err := envconfig.Process("", &cfg); err != nil {
				return fmt.Errorf("failed to process environment config: %w", err)
			}
			logx.Init(logx.LoggerOpts{Environment: cfg.Environment, Level: cfg.LogLevel})

			app, err := newApp(ctx, cfg)
			if err != nil {
				logx.Error().Err(err).Msg("Failed to start")
				return err
			}
			defer app.Close()

			return chat(ctx, app.runner, cmd.InOrStdin(), cmd.OutOrStdout(), threadID, once)
		},
	}

	thread := os.Getenv("THREAD_ID")
	if thread == "" {
		thread = defaultThreadID
	}
	cmd.Flags().StringVar(&threadID, "thread", thread, "conversation thread id (env THREAD_ID)")
	cmd.Flags().BoolVar(&once, "once", false, "answer a single line from stdin and exit")
	return cmd
}

// chat reads one user turn per line until EOF, "exit" or "quit". A failed
// turn is reported and the loop goes on, except with once.
func chat(ctx context.Context, runner graph.Runner, in io.Reader, out io.Writer, threadID string, once bool) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !once {
		fmt.Fprintf(out, "[thread_id=%s]\n", threadID)
	}
	for {
		if !once {
			fmt.Fprint(out, "\nYou: ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if lower := strings.ToLower(text); lower == "exit" || lower == "quit" {
			return nil
		}

		answer, err := runner.Invoke(ctx, model.QueryInput{ConversationID: threadID, Query: text})
		if err != nil {
			logx.Error().Err(err).Str("conversation_id", threadID).Msg("Turn failed")
			if once {
				return err
			}
			fmt.Fprintln(out, "\nAgent: Sorry, something went wrong on my side. Please try again.")
			continue
		}
		fmt.Fprintf(out, "\nAgent: %s\n", answer)
		if once {
			return nil
		}
	}
}
