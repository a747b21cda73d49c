package utils

import (
	"errors"
	"fmt"
)

// FaultKind classifies run-aborting failures. Evidence-source failures are
// not faults: they are absorbed into the evidence bundle and scored as zero.
type FaultKind string

const (
	// FaultReasoning marks an unreachable or unparseable reasoning backend.
	// The run aborts and the event is left for redelivery.
	FaultReasoning FaultKind = "reasoning_service"
	// FaultStorage marks a rejected record write. The computed result must
	// not be dropped silently; callers retry or requeue.
	FaultStorage FaultKind = "storage"
)

// Fault wraps an operation, message, and underlying error with a kind that
// decides redelivery behaviour at the invocation boundary.
type Fault struct {
	Kind FaultKind
	Op   string
	Msg  string
	Err  error
}

func (f *Fault) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s: %s", f.Kind, f.Op, f.Msg)
	}
	return fmt.Sprintf("%s: %s: %s: %v", f.Kind, f.Op, f.Msg, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// NewReasoningFault constructs a fatal reasoning-service fault.
func NewReasoningFault(op, msg string, err error) error {
	return &Fault{Kind: FaultReasoning, Op: op, Msg: msg, Err: err}
}

// NewStorageFault constructs a fatal storage fault.
func NewStorageFault(op, msg string, err error) error {
	return &Fault{Kind: FaultStorage, Op: op, Msg: msg, Err: err}
}

// FaultKindOf returns the fault kind, or empty string for non-fault errors.
func FaultKindOf(err error) FaultKind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}
