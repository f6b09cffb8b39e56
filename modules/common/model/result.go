package model

// Outcome - tagged result kind of one pipeline stage
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeDegraded
	OutcomeFatal
)

// StageResult - outcome of one stage. Degraded carries a fallback value
// and a reason; Fatal carries no value and aborts the job.
type StageResult[T any] struct {
	Value   T
	Outcome Outcome
	Reason  string
}

// Success wraps a regular stage value.
func Success[T any](v T) StageResult[T] {
	return StageResult[T]{Value: v, Outcome: OutcomeSuccess}
}

// Degraded wraps a fallback value with the reason the real one failed.
func Degraded[T any](v T, reason string) StageResult[T] {
	return StageResult[T]{Value: v, Outcome: OutcomeDegraded, Reason: reason}
}

// Fatal marks a stage that cannot proceed and has no fallback.
func Fatal[T any](reason string) StageResult[T] {
	return StageResult[T]{Outcome: OutcomeFatal, Reason: reason}
}
