package runsession

import "sync"

// Transcript is an append-only list of output lines shared by every run,
// build and terminal operation of a session. Lines are opaque strings and
// may themselves contain newlines.
type Transcript struct {
	mu    sync.Mutex
	lines []string
	subs  []func(line string)
}

// Append adds lines in order.
func (t *Transcript) Append(lines ...string) {
	t.mu.Lock()
	t.lines = append(t.lines, lines...)
	subs := t.subs
	t.mu.Unlock()
	for _, line := range lines {
		for _, fn := range subs {
			fn(line)
		}
	}
}

// Lines returns a copy of every line.
func (t *Transcript) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.lines...)
}

// Len returns the number of lines.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.lines)
}

// Tail returns up to n of the most recent lines.
func (t *Transcript) Tail(n int) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n <= 0 {
		return []string{}
	}
	if n > len(t.lines) {
		n = len(t.lines)
	}
	return append([]string(nil), t.lines[len(t.lines)-n:]...)
}

// Clear empties the transcript. Only an explicit user action should call it.
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = nil
}

// Subscribe registers fn to receive every line appended from now on.
func (t *Transcript) Subscribe(fn func(line string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subs = append(t.subs, fn)
}
