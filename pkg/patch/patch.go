// Package patch provides in-place byte search and redaction over a file
// buffer. Nothing here resizes or reallocates the buffer it is given.
package patch

import "bytes"

// NotFound is returned by IndexOf when the pattern does not occur.
const NotFound = -1

// IndexOf returns the lowest index >= start at which pattern occurs in buf,
// or NotFound. An empty pattern, a negative start or a start past the end of
// buf all yield NotFound.
//
// Resuming from the end of the previous match enumerates non-overlapping
// occurrences.
func IndexOf(buf, pattern []byte, start int) int {
	if len(pattern) == 0 || start < 0 || start > len(buf) {
		return NotFound
	}
	if len(buf)-start < len(pattern) {
		return NotFound
	}
	i := bytes.Index(buf[start:], pattern)
	if i < 0 {
		return NotFound
	}
	return start + i
}

// Occurrences returns the start of every non-overlapping match of pattern.
func Occurrences(buf, pattern []byte) []int {
	var out []int
	for i := IndexOf(buf, pattern, 0); i != NotFound; i = IndexOf(buf, pattern, i+len(pattern)) {
		out = append(out, i)
	}
	return out
}

// Terminator returns the index of the first zero byte at or after from, or
// len(buf) if the buffer ends first.
func Terminator(buf []byte, from int) int {
	if from < 0 {
		from = 0
	}
	if from >= len(buf) {
		return len(buf)
	}
	if i := bytes.IndexByte(buf[from:], 0); i >= 0 {
		return from + i
	}
	return len(buf)
}

// RedactCString zeroes every occurrence of pattern from its first byte up
// to, but not including, the next zero byte. It returns how many occurrences
// were cleared.
func RedactCString(buf, pattern []byte) int {
	n := 0
	for i := IndexOf(buf, pattern, 0); i != NotFound; {
		end := Terminator(buf, i)
		clear(buf[i:end])
		n++

		next := end
		if m := i + len(pattern); m > next {
			next = m
		}
		i = IndexOf(buf, pattern, next)
	}
	return n
}

// RedactAll runs RedactCString for each pattern in order and returns the
// total number of occurrences cleared.
func RedactAll(buf []byte, patterns [][]byte) int {
	total := 0
	for _, p := range patterns {
		total += RedactCString(buf, p)
	}
	return total
}
