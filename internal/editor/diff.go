package editor

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffOp marks a diff line as unchanged, added or removed.
type DiffOp string

const (
	OpContext DiffOp = " "
	OpAdded   DiffOp = "+"
	OpRemoved DiffOp = "-"
)

// DiffLine is one line of a line diff.
type DiffLine struct {
	Op      DiffOp
	Text    string
	OldLine int
	NewLine int
}

func (l DiffLine) String() string {
	return string(l.Op) + " " + l.Text
}

// LineDiff computes a line-level diff from before to after.
func LineDiff(before, after string) []DiffLine {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out []DiffLine
	oldLine, newLine := 1, 1
	for _, d := range diffs {
		chunk := strings.Split(d.Text, "\n")
		if len(chunk) > 0 && chunk[len(chunk)-1] == "" {
			chunk = chunk[:len(chunk)-1]
		}
		for _, text := range chunk {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				out = append(out, DiffLine{Op: OpContext, Text: text, OldLine: oldLine, NewLine: newLine})
				oldLine++
				newLine++
			case diffmatchpatch.DiffDelete:
				out = append(out, DiffLine{Op: OpRemoved, Text: text, OldLine: oldLine})
				oldLine++
			case diffmatchpatch.DiffInsert:
				out = append(out, DiffLine{Op: OpAdded, Text: text, NewLine: newLine})
				newLine++
			}
		}
	}
	return out
}

// Changed reports whether any line was added or removed.
func Changed(lines []DiffLine) bool {
	for _, l := range lines {
		if l.Op != OpContext {
			return true
		}
	}
	return false
}
