// Package errors defines TideMark's stable failure taxonomy and the exit
// codes the CLI boundary maps them to. The engine never logs; it returns
// one of these errors and lets the caller decide what to do with it.
package errors

import "fmt"

// Kind is a stable identifier for a class of TideMark failure. Kind values
// never change name across versions; they are part of the tool's contract.
type Kind string

const (
	KindConfigParse       Kind = "ConfigParse"
	KindRepositoryAccess  Kind = "RepositoryAccess"
	KindUnknownRevision   Kind = "UnknownRevision"
	KindNoReleaseAnchor   Kind = "NoReleaseAnchor"
	KindRemoteUnavailable Kind = "RemoteUnavailable"
	KindTimestampAnomaly  Kind = "TimestampAnomaly"
	KindInternalInvariant Kind = "InternalInvariant"
)

// exitCodes mirrors spec.md §6's stable exit-code contract. Exit code 2
// (usage/CLI misuse) is owned by the CLI boundary, not the engine.
var exitCodes = map[Kind]int{
	KindConfigParse:       3,
	KindNoReleaseAnchor:   4,
	KindTimestampAnomaly:  5,
	KindRemoteUnavailable: 6,
	KindRepositoryAccess:  7,
	KindUnknownRevision:   8,
	KindInternalInvariant: 9,
}

// TideError is the single error type returned across the engine boundary.
type TideError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *TideError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *TideError) Unwrap() error { return e.Err }

// ExitCode returns the stable process exit code for this error's Kind.
func (e *TideError) ExitCode() int {
	if code, ok := exitCodes[e.Kind]; ok {
		return code
	}
	return 9
}

// New constructs a TideError of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *TideError {
	return &TideError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs a TideError of the given kind, carrying an underlying
// cause that stays reachable through Unwrap. Error() appends the cause's
// own text verbatim after the message; the cause is not summarized.
func Wrap(kind Kind, err error, format string, args ...interface{}) *TideError {
	return &TideError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Is reports whether err is a *TideError of the given kind.
func Is(err error, kind Kind) bool {
	te, ok := err.(*TideError)
	if !ok {
		return false
	}
	return te.Kind == kind
}

// KindOf extracts the Kind from err, or "" if err is not a *TideError.
func KindOf(err error) Kind {
	te, ok := err.(*TideError)
	if !ok {
		return ""
	}
	return te.Kind
}
