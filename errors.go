package invhaar

import (
	"fmt"
	"image"
)

// ParseError reports a malformed or unsupported cascade description.
type ParseError struct {
	Path   string // location of the offending node inside the document
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := "cascade: " + e.Reason
	if e.Path != "" {
		msg = fmt.Sprintf("cascade: %s: %s", e.Path, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// DimensionError reports an image that can not be brought to the
// cascade's window size.
type DimensionError struct {
	Want image.Point
	Got  image.Point
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("image of size %dx%d can not be resized to %dx%d",
		e.Got.X, e.Got.Y, e.Want.X, e.Want.Y)
}

// SolveKind distinguishes the reasons a solve can fail.
type SolveKind int

const (
	// SolveInfeasible means the model has no solution.
	SolveInfeasible SolveKind = iota
	// SolveUnavailable means the solver errored, timed out or gave up.
	SolveUnavailable
	// SolveRejected means the solver returned a grid the detector does not accept.
	SolveRejected
)

func (k SolveKind) String() string {
	switch k {
	case SolveInfeasible:
		return "infeasible"
	case SolveUnavailable:
		return "solver unavailable"
	case SolveRejected:
		return "solution rejected"
	}
	return "unknown"
}

// SolveError reports a failed inversion.
type SolveError struct {
	Kind SolveKind
	Err  error
}

func (e *SolveError) Error() string {
	if e.Err == nil {
		return "solve: " + e.Kind.String()
	}
	return fmt.Sprintf("solve: %s: %v", e.Kind, e.Err)
}

func (e *SolveError) Unwrap() error { return e.Err }
