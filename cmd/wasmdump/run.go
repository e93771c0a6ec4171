package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-codec/engine"
	"github.com/wippyai/wasm-codec/errors"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run FILE FUNC [ARGS...]",
		Short: "Call an exported function",
		Long: `Compile FILE with wazero and call the exported function FUNC.

Arguments are parsed according to the function's parameter types: integers
in any Go base prefix (0x, 0o, 0b), floats in decimal or exponent form.
Modules that import functions cannot be run.`,
		Example: `  wasmdump run add.wasm add 2 3
  wasmdump run math.wasm sqrt 2.0`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, m, err := a.load(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			eng, err := engine.NewWazeroEngineWithConfig(ctx, a.engineConfig())
			if err != nil {
				return err
			}
			defer eng.Close(context.WithoutCancel(ctx))

			cm, err := eng.Compile(ctx, m)
			if err != nil {
				return err
			}
			results, err := callExport(ctx, cm, args[1], args[2:])
			if err != nil {
				return err
			}
			a.log.Debug("call finished", zap.String("func", args[1]), zap.Strings("results", results))
			_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.Join(results, " "))
			return err
		},
	}
	// Negative numbers after FILE are arguments, not flags.
	cmd.Flags().SetInterspersed(false)
	return cmd
}

// callExport instantiates cm, calls name with textual args and formats the
// results by the export's result types.
func callExport(ctx context.Context, cm *engine.CompiledModule, name string, args []string) ([]string, error) {
	sig, ok := cm.Export(name)
	if !ok {
		return nil, errors.New(errors.PhaseRuntime, errors.KindNotFound).
			Path(name).
			Detail("no exported function %q", name).
			Build()
	}
	vals, err := engine.ParseArgs(sig.Params, args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sig, err)
	}

	inst, err := cm.Instantiate(ctx)
	if err != nil {
		return nil, err
	}
	defer inst.Close(context.WithoutCancel(ctx))

	res, err := inst.Call(ctx, name, vals...)
	if err != nil {
		return nil, err
	}
	return engine.FormatResults(sig.Results, res), nil
}
