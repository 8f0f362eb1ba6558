// Package output renders recognition results for a human reading a terminal.
package output

import (
	"io"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"
)

var exitKeyword = regexp.MustCompile(`(?i)\b(exit|quit)\b`)

// IsExitKeyword reports whether transcript contains "exit" or "quit" as a
// whole word.
func IsExitKeyword(transcript string) bool {
	return exitKeyword.MatchString(transcript)
}

// Padding returns the number of spaces needed after a line of current
// characters to blank out a previous line of previous characters.
func Padding(previous, current int) int {
	return max(0, previous-current)
}

// Console serializes writes from several sessions onto one writer.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole wraps w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.w.Write(p)
}

// Transcript tracks the line currently on screen for one recognition stream.
// Interim results end in a carriage return so the next result overwrites
// them; final results end the line.
type Transcript struct {
	w            io.Writer
	charsPrinted int
}

// NewTranscript returns a Transcript writing to w.
func NewTranscript(w io.Writer) *Transcript {
	return &Transcript{w: w}
}

// Interim shows a provisional transcript.
func (t *Transcript) Interim(text string) error {
	n := utf8.RuneCountInString(text)
	if err := t.write(text, n, "\r"); err != nil {
		return err
	}
	t.charsPrinted = n
	return nil
}

// Final shows a finished transcript and starts a new line. It reports
// whether the transcript asks to end the session.
func (t *Transcript) Final(text string) (exit bool, err error) {
	err = t.write(text, utf8.RuneCountInString(text), "\n")
	t.charsPrinted = 0
	return IsExitKeyword(text), err
}

// CharsPrinted is the length of the interim line currently shown.
func (t *Transcript) CharsPrinted() int {
	return t.charsPrinted
}

func (t *Transcript) write(text string, n int, end string) error {
	var sb strings.Builder
	sb.WriteString(text)
	sb.WriteString(strings.Repeat(" ", Padding(t.charsPrinted, n)))
	sb.WriteString(end)
	_, err := io.WriteString(t.w, sb.String())
	return err
}
