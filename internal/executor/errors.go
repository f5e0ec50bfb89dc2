package executor

import (
	"errors"
	"fmt"
)

var (
	ErrTooFewFiles     = errors.New("at least two files are required")
	ErrNoUniqueFiles   = errors.New("no unique files to assemble")
	ErrNoCommonFile    = errors.New("common file is missing")
	ErrNoPagesSelected = errors.New("no pages selected")
	ErrNoPlan          = errors.New("split plan is not set")
)

// EngineError wraps a failure reported by the PDF engine.
type EngineError struct {
	Op   string
	File string
	Err  error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.File, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// TransportError wraps a failure to fetch an input or deliver an output.
type TransportError struct {
	Op   string
	File string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.File, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Class groups errors by how the conversation reacts to them.
type Class int

const (
	ClassNone Class = iota
	ClassUserInput
	ClassEngine
	ClassTransport
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassUserInput:
		return "user_input"
	case ClassEngine:
		return "engine"
	case ClassTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Classify maps err onto its Class. Unknown errors count as engine failures.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}
	switch {
	case errors.Is(err, ErrTooFewFiles), errors.Is(err, ErrNoUniqueFiles),
		errors.Is(err, ErrNoPagesSelected), errors.Is(err, ErrNoPlan), errors.Is(err, ErrNoCommonFile):
		return ClassUserInput
	}
	var te *TransportError
	if errors.As(err, &te) {
		return ClassTransport
	}
	return ClassEngine
}
