package main

import (
	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"
)

func newRawCmd(a *app) *cobra.Command {
	var noCode bool
	cmd := &cobra.Command{
		Use:   "raw FILE",
		Short: "Dump the decoded module model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, m, err := a.load(args[0])
			if err != nil {
				return err
			}
			if noCode {
				m.Code = nil
			}
			dumper().Fdump(cmd.OutOrStdout(), m)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noCode, "no-code", false, "omit function bodies")
	return cmd
}

func dumper() *spew.ConfigState {
	return &spew.ConfigState{
		Indent:                  "  ",
		DisablePointerAddresses: true,
		DisableCapacities:       true,
		SortKeys:                true,
	}
}
