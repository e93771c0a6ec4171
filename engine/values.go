package engine

import (
	"fmt"
	"math"
	"strconv"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-codec/errors"
	"github.com/wippyai/wasm-codec/wasm"
)

// ParseArgs converts textual arguments into stack values for the given
// parameter types. Integers accept any base strconv understands; i32 also
// accepts values up to 2^32-1.
func ParseArgs(types []wasm.ValType, args []string) ([]uint64, error) {
	if len(types) != len(args) {
		return nil, errors.New(errors.PhaseRuntime, errors.KindTypeMismatch).
			Value(len(args)).
			Detail("expected %d arguments, got %d", len(types), len(args)).
			Build()
	}
	out := make([]uint64, len(args))
	for i, s := range args {
		v, err := parseValue(types[i], s)
		if err != nil {
			return nil, errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
				Path(fmt.Sprintf("arg[%d]", i)).
				Value(s).
				Cause(err).
				Detail("cannot parse %q as %s", s, types[i]).
				Build()
		}
		out[i] = v
	}
	return out, nil
}

func parseValue(t wasm.ValType, s string) (uint64, error) {
	switch t {
	case wasm.ValI32:
		if v, err := strconv.ParseInt(s, 0, 32); err == nil {
			return api.EncodeI32(int32(v)), nil
		}
		v, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			return 0, err
		}
		return api.EncodeU32(uint32(v)), nil
	case wasm.ValI64:
		if v, err := strconv.ParseInt(s, 0, 64); err == nil {
			return api.EncodeI64(v), nil
		}
		return strconv.ParseUint(s, 0, 64)
	case wasm.ValF32:
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return 0, err
		}
		return api.EncodeF32(float32(v)), nil
	case wasm.ValF64:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, err
		}
		return api.EncodeF64(v), nil
	}
	return 0, fmt.Errorf("%s arguments are not supported", t)
}

// FormatResults renders stack values according to their result types.
func FormatResults(types []wasm.ValType, vals []uint64) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		var t wasm.ValType
		if i < len(types) {
			t = types[i]
		}
		out[i] = formatValue(t, v)
	}
	return out
}

func formatValue(t wasm.ValType, v uint64) string {
	switch t {
	case wasm.ValI32:
		return strconv.FormatInt(int64(api.DecodeI32(v)), 10)
	case wasm.ValI64:
		return strconv.FormatInt(int64(v), 10)
	case wasm.ValF32:
		return strconv.FormatFloat(float64(api.DecodeF32(v)), 'g', -1, 32)
	case wasm.ValF64:
		return strconv.FormatFloat(api.DecodeF64(v), 'g', -1, 64)
	case wasm.ValFuncRef, wasm.ValExternRef:
		if v == 0 {
			return "null"
		}
		return fmt.Sprintf("ref(0x%x)", v)
	}
	if v > math.MaxUint32 {
		return fmt.Sprintf("0x%016x", v)
	}
	return fmt.Sprintf("0x%08x", v)
}
