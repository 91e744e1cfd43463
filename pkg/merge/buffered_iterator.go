package merge

// bufferMode tracks which of the three modes described in spec §4.7 a
// bufferedIterator is currently in.
type bufferMode int

const (
	modeNormal bufferMode = iota
	modeFillBuffer
	modeReadBuffer
)

// bufferedIterator wraps a generic, non-restartable sequence (Next()
// (T, error), terminated by io.EOF) and supports exactly one
// snapshot-and-replay epoch at a time: SetBufferingMode starts
// recording every item returned from the inner sequence; Reset replays
// everything recorded since the last SetBufferingMode call, then
// resumes pulling from the inner sequence. Only a single buffered epoch
// is supported at a time, matching the contract in spec §4.7/§9: this
// is a one-shot snapshot-and-replay, not general rewinding.
type bufferedIterator[T any] struct {
	inner  func() (T, error)
	mode   bufferMode
	buf    []T
	replay int
}

// newBufferedIterator wraps next (typically a *step.Reader's Next
// method) in a bufferedIterator, starting in Normal (pass-through) mode.
func newBufferedIterator[T any](next func() (T, error)) *bufferedIterator[T] {
	return &bufferedIterator[T]{inner: next, mode: modeNormal}
}

// SetBufferingMode clears any previously recorded buffer and starts
// recording every item returned by Next into it.
func (b *bufferedIterator[T]) SetBufferingMode() {
	b.buf = b.buf[:0]
	b.replay = 0
	b.mode = modeFillBuffer
}

// Reset transitions from FillBuffer to ReadBuffer(0): the next calls to
// Next will replay, in order, everything recorded since SetBufferingMode,
// before resuming from the inner sequence.
func (b *bufferedIterator[T]) Reset() {
	b.mode = modeReadBuffer
	b.replay = 0
}

// Next returns the next item per the current mode's contract.
func (b *bufferedIterator[T]) Next() (T, error) {
	if b.mode == modeReadBuffer {
		if b.replay < len(b.buf) {
			item := b.buf[b.replay]
			b.replay++
			return item, nil
		}
		b.mode = modeNormal
	}

	item, err := b.inner()
	if err != nil {
		var zero T
		return zero, err
	}
	if b.mode == modeFillBuffer {
		b.buf = append(b.buf, item)
	}
	return item, nil
}
