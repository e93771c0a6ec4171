package wasm

import "github.com/wippyai/wasm-codec/errors"

// Sentinels for errors.Is. Decode errors match on phase and kind, so any
// *errors.Error produced by the decoder compares equal to one of these.
var (
	ErrInvalidPreamble       = errors.Sentinel(errors.PhaseDecode, errors.KindInvalidPreamble)
	ErrDuplicateSection      = errors.Sentinel(errors.PhaseDecode, errors.KindDuplicateSection)
	ErrUnknownSection        = errors.Sentinel(errors.PhaseDecode, errors.KindUnknownSection)
	ErrSectionOrder          = errors.Sentinel(errors.PhaseDecode, errors.KindSectionOrder)
	ErrUnknownOpcode         = errors.Sentinel(errors.PhaseDecode, errors.KindUnknownOpcode)
	ErrUnknownSubOpcode      = errors.Sentinel(errors.PhaseDecode, errors.KindUnknownSubOpcode)
	ErrUnexpectedControl     = errors.Sentinel(errors.PhaseDecode, errors.KindUnexpectedControl)
	ErrSectionLengthMismatch = errors.Sentinel(errors.PhaseDecode, errors.KindLengthMismatch)
	ErrTruncatedInput        = errors.Sentinel(errors.PhaseDecode, errors.KindTruncated)
	ErrInvalidFlag           = errors.Sentinel(errors.PhaseDecode, errors.KindInvalidFlag)
	ErrVarintOverflow        = errors.Sentinel(errors.PhaseDecode, errors.KindOverflow)
	ErrInvalidUTF8           = errors.Sentinel(errors.PhaseDecode, errors.KindInvalidUTF8)
)
