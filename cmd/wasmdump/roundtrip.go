package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-codec/wasm"
)

func newRoundtripCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "roundtrip FILE",
		Short: "Decode and re-encode, then compare bytes",
		Long: `Decode FILE, encode the result, and compare it with the input.

Inputs written by other toolchains may use padded LEB128 or empty sections
that the encoder normalizes away; in that case the first differing offset
is reported together with a structural diff of the two decoded models.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, m, err := a.load(args[0])
			if err != nil {
				return err
			}
			encoded := m.Encode()
			if out != "" {
				if err := writeFile(out, encoded); err != nil {
					return err
				}
			}
			return reportRoundtrip(cmd.OutOrStdout(), data, encoded)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "write the re-encoded module to this file")
	return cmd
}

// errRoundtripMismatch marks a byte difference after re-encoding.
var errRoundtripMismatch = errors.New("re-encoded module differs from input")

func reportRoundtrip(w io.Writer, original, encoded []byte) error {
	if bytes.Equal(original, encoded) {
		_, err := fmt.Fprintf(w, "identical: %d bytes\n", len(encoded))
		return err
	}

	off := firstDiff(original, encoded)
	fmt.Fprintf(w, "input %d bytes, re-encoded %d bytes\n", len(original), len(encoded))
	fmt.Fprintf(w, "first difference at offset 0x%x\n", off)

	before, err1 := wasm.DecodeModule(original)
	after, err2 := wasm.DecodeModule(encoded)
	if err1 == nil && err2 == nil {
		if diff := cmp.Diff(before, after, cmpopts.EquateEmpty()); diff != "" {
			fmt.Fprintf(w, "model diff (-input +re-encoded):\n%s", diff)
		} else {
			fmt.Fprintln(w, "models are equal; only the byte encoding differs")
		}
	}
	return errRoundtripMismatch
}

func firstDiff(a, b []byte) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
