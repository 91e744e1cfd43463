package merge

import (
	"io"
	"testing"
)

func sliceSource(items []int) func() (int, error) {
	i := 0
	return func() (int, error) {
		if i >= len(items) {
			return 0, io.EOF
		}
		v := items[i]
		i++
		return v, nil
	}
}

func drain(t *testing.T, b *bufferedIterator[int]) []int {
	t.Helper()
	var out []int
	for {
		v, err := b.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		out = append(out, v)
	}
}

func TestBufferedIterator_NormalPassThrough(t *testing.T) {
	b := newBufferedIterator(sliceSource([]int{1, 2, 3}))
	got := drain(t, b)
	want := []int{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestBufferedIterator_SnapshotAndReplay(t *testing.T) {
	b := newBufferedIterator(sliceSource([]int{1, 2, 3, 4}))

	b.SetBufferingMode()
	first, err := b.Next()
	if err != nil || first != 1 {
		t.Fatalf("first Next() = %v, %v", first, err)
	}
	second, err := b.Next()
	if err != nil || second != 2 {
		t.Fatalf("second Next() = %v, %v", second, err)
	}

	b.Reset()
	replay := drain(t, b)
	want := []int{1, 2, 3, 4}
	if len(replay) != len(want) {
		t.Fatalf("replay = %v, want %v", replay, want)
	}
	for i := range want {
		if replay[i] != want[i] {
			t.Fatalf("replay = %v, want %v", replay, want)
		}
	}
}

func TestBufferedIterator_ResetWithEmptyBufferJustResumes(t *testing.T) {
	b := newBufferedIterator(sliceSource([]int{1, 2}))
	b.SetBufferingMode()
	b.Reset() // nothing buffered yet
	got := drain(t, b)
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("got %v, want [1 2]", got)
	}
}
