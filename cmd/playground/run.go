package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	var expr string

	cmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Run a program and print its result as JSON",
		Long: `Run a program and print its result as JSON.

The program is read from the file argument, from -e, or from stdin when the
file is "-".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSource(cmd.InOrStdin(), expr, args)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			g, err := a.openGuest(ctx)
			if err != nil {
				return err
			}
			defer g.Close(ctx)

			if err := g.bridge.Init(ctx); err != nil {
				return err
			}

			s := newSession(g.bridge, a.logger)
			e, ok := s.Run(ctx, source)
			if !ok {
				return fmt.Errorf("empty program")
			}
			if e.Level == LevelError {
				fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render(e.String()))
				return errReported
			}
			fmt.Fprintln(cmd.OutOrStdout(), e.Message)
			return nil
		},
	}

	cmd.Flags().StringVarP(&expr, "eval", "e", "", "program text")
	return cmd
}

func readSource(stdin io.Reader, expr string, args []string) (string, error) {
	switch {
	case expr != "" && len(args) > 0:
		return "", fmt.Errorf("use either -e or a file, not both")
	case expr != "":
		return expr, nil
	case len(args) == 0:
		return "", fmt.Errorf("no program: pass a file or -e")
	case args[0] == "-":
		data, err := io.ReadAll(stdin)
		return string(data), err
	default:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", err
		}
		return strings.TrimSuffix(string(data), "\n"), nil
	}
}
