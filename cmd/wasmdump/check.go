package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/wippyai/wasm-codec/engine"
	"github.com/wippyai/wasm-codec/wasm"
)

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check FILE",
		Short: "Decode, validate and compile a module",
		Long: `Decode FILE, run cross-section validation, then compile the original
bytes and the re-encoded bytes with wazero. All validation problems are
listed, not just the first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, m, err := a.load(args[0])
			if err != nil {
				return err
			}
			eng, err := engine.NewWazeroEngineWithConfig(cmd.Context(), a.engineConfig())
			if err != nil {
				return err
			}
			defer eng.Close(context.WithoutCancel(cmd.Context()))
			return runCheck(cmd.Context(), cmd.OutOrStdout(), eng, data, m)
		},
	}
}

func runCheck(ctx context.Context, w io.Writer, eng *engine.WazeroEngine, data []byte, m *wasm.Module) error {
	p := &linePrinter{w: w}
	p.printf("decode:   ok\n")

	if err := m.Validate(); err != nil {
		errs := multierr.Errors(err)
		p.printf("validate: %d problem(s)\n", len(errs))
		for _, e := range errs {
			p.printf("  %v\n", e)
		}
		return fmt.Errorf("validation failed with %d problem(s)", len(errs))
	}
	p.printf("validate: ok\n")

	if err := eng.Check(ctx, data); err != nil {
		p.printf("wazero:   %v\n", err)
		return err
	}
	if err := eng.Check(ctx, m.Encode()); err != nil {
		p.printf("wazero (re-encoded): %v\n", err)
		return err
	}
	p.printf("wazero:   ok\n")
	return p.err
}
