// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stevebottos/dxtr-cli/internal/chat"
)

// maxInputLine bounds a single line of user input.
const maxInputLine = 1 << 20

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive research assistant",
	Long: `Chat starts a conversation with the assistant. The assistant can read
files, analyze your pinned GitHub repositories, synthesize your profile, rank
a day's papers and answer questions about one paper.

Type /reset to start a new conversation and /exit (or Ctrl-D) to quit.
Ctrl-C cancels the current turn without leaving the session.`,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if metricsAddr != "" {
		srv := serveMetrics(metricsAddr, a.logger)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	out := cmd.OutOrStdout()
	reg, err := a.registry(out)
	if err != nil {
		return err
	}
	opts := chatOptions(a)
	orch := chat.New(a.endpoint, reg, opts, a.logger)

	sink := chat.WriterSink{W: out, Verbose: verbose}
	return repl(cmd.Context(), orch, sink, cmd.InOrStdin(), out)
}

func chatOptions(a *app) chat.Options {
	opts := chat.OptionsFromConfig(a.cfg)
	opts.Workspace = a.workspace()
	return opts
}

// turnRunner is the part of *chat.Orchestrator the loop needs.
type turnRunner interface {
	Turn(ctx context.Context, session *chat.Session, input string) chat.TurnResult
}

// repl reads one user message per line until EOF or /exit.
func repl(ctx context.Context, orch turnRunner, sink chat.EventSink, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	session := chat.NewSession(sink)
	fmt.Fprintln(out, "DXTR ready. /reset starts over, /exit quits.")

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), maxInputLine)
	for {
		fmt.Fprint(out, "\n> ")
		if !sc.Scan() {
			break
		}
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/reset":
			session = chat.NewSession(sink)
			fmt.Fprintln(out, "Started a new conversation.")
			continue
		}

		turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		orch.Turn(turnCtx, session, line)
		stop()
		fmt.Fprintln(out)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	fmt.Fprintln(out)
	return nil
}

// serveMetrics exposes Prometheus collectors on addr until shut down.
func serveMetrics(addr string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))
	return srv
}

func init() {
	chatCmd.Flags().BoolP("verbose", "v", false, "print tool results")
	chatCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")

	rootCmd.AddCommand(chatCmd)
}
