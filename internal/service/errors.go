package service

import (
	"errors"
	"fmt"
)

// Error kinds, one namespace per pipeline stage. The orchestrator branches on
// these, so they are typed rather than matched by message.

type NormalizationErrorKind string

const (
	MissingField NormalizationErrorKind = "missing_field"
	TypeMismatch NormalizationErrorKind = "type_mismatch"
)

type NormalizationError struct {
	Kind  NormalizationErrorKind
	Field string
	Err   error
}

func (e *NormalizationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("normalization %s: field %q: %v", e.Kind, e.Field, e.Err)
	}
	return fmt.Sprintf("normalization %s: field %q", e.Kind, e.Field)
}

func (e *NormalizationError) Unwrap() error { return e.Err }

type ConnectorErrorKind string

const (
	Unreachable       ConnectorErrorKind = "unreachable"
	Unauthorized      ConnectorErrorKind = "unauthorized"
	MalformedResponse ConnectorErrorKind = "malformed_response"
)

type ConnectorError struct {
	Kind ConnectorErrorKind
	Err  error
}

func (e *ConnectorError) Error() string {
	return fmt.Sprintf("connector %s: %v", e.Kind, e.Err)
}

func (e *ConnectorError) Unwrap() error { return e.Err }

// Retryable reports whether the orchestrator may retry the fetch (possibly
// against the mock implementation). Credential failures are terminal.
func (e *ConnectorError) Retryable() bool { return e.Kind != Unauthorized }

type BuildErrorKind string

const (
	NoEligibleCandidates BuildErrorKind = "no_eligible_candidates"
)

type BuildError struct {
	Kind BuildErrorKind
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("context build: %s", e.Kind)
}

type EngineErrorKind string

const (
	Transient EngineErrorKind = "transient"
	Denied    EngineErrorKind = "denied"
	Timeout   EngineErrorKind = "timeout"
)

type EngineError struct {
	Kind EngineErrorKind
	Err  error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine %s: %v", e.Kind, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

type ParseErrorKind string

const (
	Unparseable           ParseErrorKind = "unparseable"
	HallucinatedReference ParseErrorKind = "hallucinated_reference"
	WeightsInvalid        ParseErrorKind = "weights_invalid"
)

type ParseError struct {
	Kind   ParseErrorKind
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("parse %s: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("parse %s", e.Kind)
}

// Stage names the pipeline state in which a request failed.
type Stage string

const (
	StageFetching        Stage = "fetching"
	StageNormalizing     Stage = "normalizing"
	StageContextBuilding Stage = "context_building"
	StageGenerating      Stage = "generating"
	StageParsing         Stage = "parsing"
	StageDone            Stage = "done"
)

// StageError wraps a stage failure for the caller. Handlers surface Stage and
// the underlying kind, never internal detail.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ErrorKind extracts the taxonomy kind from any pipeline error, for the
// structured error object returned to callers.
func ErrorKind(err error) string {
	var ne *NormalizationError
	if errors.As(err, &ne) {
		return string(ne.Kind)
	}
	var ce *ConnectorError
	if errors.As(err, &ce) {
		return string(ce.Kind)
	}
	var be *BuildError
	if errors.As(err, &be) {
		return string(be.Kind)
	}
	var ee *EngineError
	if errors.As(err, &ee) {
		return string(ee.Kind)
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		return string(pe.Kind)
	}
	return "internal"
}
