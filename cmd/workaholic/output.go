package main

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

func outputJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func getTerminalWidth() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	return 80
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

// fit truncates s to width display cells, counting wide runes twice.
func fit(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	if width <= 0 {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}

// flexWidth is what remains of the terminal for one free-text column once
// the fixed columns and table borders are accounted for.
func flexWidth(fixed ...int) int {
	remaining := getTerminalWidth() - (len(fixed)+1)*3
	for _, width := range fixed {
		remaining -= width
	}
	if remaining < 15 {
		return 15
	}
	return remaining
}

func maxWidth(values []string, floor, ceiling int) int {
	width := floor
	for _, v := range values {
		if w := runewidth.StringWidth(v); w > width {
			width = w
		}
	}
	if width > ceiling {
		return ceiling
	}
	return width
}
