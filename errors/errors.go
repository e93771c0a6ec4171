package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseDecode   Phase = "decode"   // bytes to module
	PhaseValidate Phase = "validate" // cross-section checks
	PhaseBuild    Phase = "build"    // builder misuse
	PhaseLoad     Phase = "load"     // engine compilation
	PhaseRuntime  Phase = "runtime"  // engine calls
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidPreamble   Kind = "invalid_preamble"
	KindDuplicateSection  Kind = "duplicate_section"
	KindUnknownSection    Kind = "unknown_section"
	KindSectionOrder      Kind = "section_order"
	KindUnknownOpcode     Kind = "unknown_opcode"
	KindUnknownSubOpcode  Kind = "unknown_sub_opcode"
	KindLengthMismatch    Kind = "length_mismatch"
	KindTruncated         Kind = "truncated_input"
	KindInvalidFlag       Kind = "invalid_flag"
	KindOverflow          Kind = "overflow"
	KindInvalidUTF8       Kind = "invalid_utf8"
	KindUnexpectedControl Kind = "unexpected_control"
	KindOutOfBounds       Kind = "out_of_bounds"
	KindCountMismatch     Kind = "count_mismatch"
	KindDuplicateExport   Kind = "duplicate_export"
	KindInvalidImmediate  Kind = "invalid_immediate"
	KindInvalidInput      Kind = "invalid_input"
	KindNotFound          Kind = "not_found"
	KindTypeMismatch      Kind = "type_mismatch"
)

// NoOffset marks an error that is not tied to a byte position.
const NoOffset = -1

// Error is the structured error type used throughout the codec
type Error struct {
	Value   any
	Cause   error
	Phase   Phase
	Kind    Kind
	Section string
	Detail  string
	Path    []string
	Offset  int
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Section != "" {
		b.WriteString(" in ")
		b.WriteString(e.Section)
		b.WriteString(" section")
	}

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Offset >= 0 {
		fmt.Fprintf(&b, " (offset %d)", e.Offset)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Sentinel returns a comparison target for errors.Is.
func Sentinel(phase Phase, kind Kind) *Error {
	return &Error{Phase: phase, Kind: kind, Offset: NoOffset}
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase:  phase,
			Kind:   kind,
			Offset: NoOffset,
		},
	}
}

// Path sets the item path, e.g. "func[3]", "body"
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Section sets the section name
func (b *Builder) Section(name string) *Builder {
	b.err.Section = name
	return b
}

// Offset sets the byte offset into the input
func (b *Builder) Offset(off int) *Builder {
	b.err.Offset = off
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Truncated creates an error for a read past the end of input
func Truncated(offset, want, have int) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindTruncated,
		Offset: offset,
		Detail: fmt.Sprintf("need %d bytes, %d remain", want, have),
	}
}

// Overflow creates a varint overflow error
func Overflow(offset int, targetType string) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindOverflow,
		Offset: offset,
		Detail: fmt.Sprintf("LEB128 value overflows %s", targetType),
		Value:  targetType,
	}
}

// InvalidUTF8 creates an invalid UTF-8 error
func InvalidUTF8(offset int, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindInvalidUTF8,
		Offset: offset,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
	}
}

// InvalidFlag creates an error for a tag or flag byte outside its allowed set
func InvalidFlag(offset int, field string, value any) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindInvalidFlag,
		Offset: offset,
		Detail: fmt.Sprintf("invalid %s: 0x%02x", field, value),
		Value:  value,
	}
}

// LengthMismatch creates an error for a payload that did not consume its declared size
func LengthMismatch(section string, offset, declared, actual int) *Error {
	return &Error{
		Phase:   PhaseDecode,
		Kind:    KindLengthMismatch,
		Section: section,
		Offset:  offset,
		Detail:  fmt.Sprintf("declared %d bytes, consumed %d", declared, actual),
		Value:   actual,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Offset: NoOffset,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Offset: NoOffset,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Offset: NoOffset,
		Detail: detail,
		Cause:  cause,
	}
}

// Load wraps an engine compilation failure
func Load(detail string, cause error) *Error {
	return Wrap(PhaseLoad, KindInvalidInput, cause, detail)
}
