package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

func newReplCmd(a *app) *cobra.Command {
	var (
		metricsAddr string
		plain       bool
	)

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Edit and run programs interactively",
		Long: `Edit and run programs interactively.

In the editor, ctrl+r runs the program, ctrl+l clears the editor and ctrl+c
quits. When stdin is not a terminal, or with --plain, every input line is run
as a program.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			g, err := a.openGuest(ctx)
			if err != nil {
				return err
			}
			defer g.Close(ctx)

			if metricsAddr != "" {
				srv := serveMetrics(a, metricsAddr)
				defer srv.Close()
			}

			if plain || !term.IsTerminal(int(os.Stdin.Fd())) {
				if err := g.bridge.Init(ctx); err != nil {
					return err
				}
				return lineREPL(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), newSession(g.bridge, a.logger))
			}

			m := newReplModel(ctx, g.bridge, newSession(g.bridge, a.logger), g.source.String())
			p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
			final, err := p.Run()
			if err != nil {
				return err
			}
			if fm, ok := final.(*replModel); ok && fm.err != nil {
				return fm.err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	cmd.Flags().BoolVar(&plain, "plain", false, "line mode even on a terminal")
	return cmd
}

// lineREPL runs each non-blank input line and prints its log entry.
func lineREPL(ctx context.Context, in io.Reader, out io.Writer, s *session) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := sc.Text()
		if strings.TrimSpace(line) == "exit" {
			return nil
		}
		e, ok := s.Run(ctx, line)
		if !ok {
			continue
		}
		fmt.Fprintln(out, renderEntry(e))
	}
}

func serveMetrics(a *app, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	a.logger.Info("serving metrics", zap.String("addr", addr))
	return srv
}
