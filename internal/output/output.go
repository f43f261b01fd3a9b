// Package output renders CLI messages, tables, workspace trees and
// transcripts.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// UI writes user-facing messages. Info and success lines go to Out; warnings
// and errors go to ErrOut.
type UI struct {
	Verbose bool
	DryRun  bool
	Out     io.Writer
	ErrOut  io.Writer
}

// New returns a UI on stdout and stderr.
func New() *UI {
	return &UI{Out: os.Stdout, ErrOut: os.Stderr}
}

type level int

const (
	levelInfo level = iota
	levelSuccess
	levelWarning
	levelError
	levelVerbose
)

var prefixes = map[level]*color.Color{
	levelInfo:    color.New(color.FgHiBlue),
	levelSuccess: color.New(color.FgHiGreen),
	levelWarning: color.New(color.FgHiYellow),
	levelError:   color.New(color.FgHiRed),
	levelVerbose: color.New(color.FgHiBlue),
}

var symbols = map[level]string{
	levelInfo:    "i",
	levelSuccess: "✓",
	levelWarning: "⚠",
	levelError:   "✗",
	levelVerbose: "  →",
}

var (
	cyan   = color.New(color.FgHiCyan).SprintFunc()
	green  = color.New(color.FgHiGreen).SprintFunc()
	yellow = color.New(color.FgHiYellow).SprintFunc()
	red    = color.New(color.FgHiRed).SprintFunc()
)

// Cyan highlights names in messages.
func Cyan(s string) string { return cyan(s) }

// StateColor colors an editor save state: clean is green, dirty is yellow.
func StateColor(state string) string {
	switch state {
	case "clean":
		return green(state)
	case "dirty":
		return yellow(state)
	}
	return state
}

func (u *UI) emit(lv level, format string, a []any) {
	w := u.Out
	if lv == levelWarning || lv == levelError {
		w = u.ErrOut
	}
	fmt.Fprintf(w, "%s %s\n", prefixes[lv].Sprint(symbols[lv]), fmt.Sprintf(format, a...))
}

// Info prints an informational line.
func (u *UI) Info(format string, a ...any) { u.emit(levelInfo, format, a) }

func (u *UI) Success(format string, a ...any) { u.emit(levelSuccess, format, a) }

func (u *UI) Warning(format string, a ...any) { u.emit(levelWarning, format, a) }

// Error prints to ErrOut.
func (u *UI) Error(format string, a ...any) { u.emit(levelError, format, a) }

// VerboseLog prints only with --verbose.
func (u *UI) VerboseLog(format string, a ...any) {
	if u.Verbose {
		u.emit(levelVerbose, format, a)
	}
}

// DryRunMsg reports what a --dry-run invocation would have done.
func (u *UI) DryRunMsg(format string, a ...any) {
	if u.DryRun {
		u.emit(levelWarning, "[DRY-RUN] "+format, a)
	}
}

// Table returns a borderless, left-aligned table writing to Out.
func (u *UI) Table(headers []string) *tablewriter.Table {
	table := tablewriter.NewTable(u.Out,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines:      tw.LinesNone,
				Separators: tw.SeparatorsNone,
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
	)
	table.Header(headers)
	return table
}
