package vm

import "fmt"

// TraceRecorder collects the processor trace of an execution, one
// StepRecord per executed instruction.
type TraceRecorder struct {
	steps []StepRecord
}

// NewTraceRecorder creates an empty recorder
func NewTraceRecorder() *TraceRecorder {
	return &TraceRecorder{steps: make([]StepRecord, 0, 64)}
}

// RecordStep appends a step, checking that cycles arrive in order
func (tr *TraceRecorder) RecordStep(step StepRecord) error {
	if step.Cycle != uint64(len(tr.steps)) {
		return fmt.Errorf("out of order step: got cycle %d, expected %d", step.Cycle, len(tr.steps))
	}
	tr.steps = append(tr.steps, step)
	return nil
}

// Steps returns the recorded steps
func (tr *TraceRecorder) Steps() []StepRecord {
	return tr.steps
}

// Len returns the number of recorded steps
func (tr *TraceRecorder) Len() int {
	return len(tr.steps)
}
