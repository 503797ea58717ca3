package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Inspect the interpreter module and instantiate it once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			g, err := a.openGuest(ctx)
			if err != nil {
				return err
			}
			defer g.Close(ctx)

			info, err := g.engine.Inspect(ctx, g.source)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%s (%d bytes)", g.source, info.Size)))
			fmt.Fprintln(out, "\nImports:")
			for _, fn := range info.Imports {
				mark := resultStyle.Render("ok")
				if !fn.Bound {
					mark = errorStyle.Render("missing")
				}
				fmt.Fprintf(out, "  %-8s %s.%s %s\n", mark, fn.Module, funcStyle.Render(fn.Name), typeStyle.Render(fn.Signature))
			}
			fmt.Fprintln(out, "\nExports:")
			for _, fn := range info.Exports {
				fmt.Fprintf(out, "  %s %s\n", funcStyle.Render(fn.Name), typeStyle.Render(fn.Signature))
			}

			if err := g.bridge.Init(ctx); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render(strings.TrimSpace(err.Error())))
				return errReported
			}
			fmt.Fprintln(out, "\n"+resultStyle.Render("instantiated: "+g.bridge.State().String()))
			return nil
		},
	}
}
