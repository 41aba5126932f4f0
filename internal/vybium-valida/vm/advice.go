package vm

// AdviceSource supplies the non-deterministic input read by READ_ADVICE.
// Next returns ErrAdviceExhausted once no input remains.
type AdviceSource interface {
	Next() (byte, error)
}

// StringAdvice serves the bytes of a string in order
type StringAdvice struct {
	data []byte
	pos  int
}

// NewStringAdvice creates a source over the bytes of s
func NewStringAdvice(s string) *StringAdvice {
	return &StringAdvice{data: []byte(s)}
}

// NoAdvice returns a source that is exhausted from the start
func NoAdvice() *StringAdvice {
	return &StringAdvice{}
}

// Next returns the next advice byte
func (a *StringAdvice) Next() (byte, error) {
	if a.pos >= len(a.data) {
		return 0, ErrAdviceExhausted
	}
	b := a.data[a.pos]
	a.pos++
	return b, nil
}

// Remaining returns the number of unread bytes
func (a *StringAdvice) Remaining() int {
	return len(a.data) - a.pos
}
