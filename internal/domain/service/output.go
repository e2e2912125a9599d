package service

import (
	"bytes"
	"strings"
	"sync"
	"unicode/utf8"
)

const truncationMarker = "...(output truncated)...\n"

// maxPartialBytes caps an unterminated line; only its tail is kept.
const maxPartialBytes = 64 << 10

// outputBuffer collects streamed exec output line by line. Once more than 1.5x
// maxLines lines are held, the older half is discarded so memory stays bounded
// for chatty commands. A line with no newline is held up to maxPartialBytes.
// Safe for concurrent writers.
type outputBuffer struct {
	mu       sync.Mutex
	maxLines int
	lines    []string
	partial  bytes.Buffer
	trimmed  bool
}

func newOutputBuffer(maxLines int) *outputBuffer {
	if maxLines <= 0 {
		maxLines = 200
	}
	return &outputBuffer{maxLines: maxLines}
}

func (b *outputBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.partial.Write(p)
	for {
		data := b.partial.Bytes()
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		b.appendLine(strings.TrimRight(string(data[:i]), "\r"))
		b.partial.Next(i + 1)
	}
	if b.partial.Len() > maxPartialBytes {
		keep := tail(b.partial.String(), maxPartialBytes)
		b.partial.Reset()
		b.partial.WriteString(keep)
		b.trimmed = true
	}
	return len(p), nil
}

func (b *outputBuffer) appendLine(line string) {
	b.lines = append(b.lines, line)
	if len(b.lines) > b.maxLines*3/2 {
		keep := b.lines[len(b.lines)/2:]
		b.lines = append(make([]string, 0, b.maxLines*3/2+1), keep...)
		b.trimmed = true
	}
}

// Text returns the collected output, keeping the tail when it exceeds maxChars.
func (b *outputBuffer) Text(maxChars int) string {
	b.mu.Lock()
	lines := append([]string(nil), b.lines...)
	if b.partial.Len() > 0 {
		lines = append(lines, b.partial.String())
	}
	trimmed := b.trimmed
	b.mu.Unlock()

	text := strings.Join(lines, "\n")
	if maxChars > 0 && len(text) > maxChars {
		return truncationMarker + tail(text, maxChars)
	}
	if trimmed {
		return truncationMarker + text
	}
	return text
}

// tail returns at most n bytes from the end of s without splitting a rune.
func tail(s string, n int) string {
	start := len(s) - n
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}
