package detect

import "unicode/utf8"

// All offsets exposed by this package are rune offsets. Byte offsets only
// appear at the boundary with regexp and strings.Index and are converted
// immediately.

// RuneOffset converts a byte offset within s to a rune offset.
func RuneOffset(s string, byteOffset int) int {
	if byteOffset <= 0 {
		return 0
	}
	if byteOffset > len(s) {
		byteOffset = len(s)
	}
	return utf8.RuneCountInString(s[:byteOffset])
}

// ByteOffset converts a rune offset within b to a byte offset.
// Offsets past the end clamp to len(b).
func ByteOffset(b []byte, runeOffset int) int {
	i := 0
	for n := 0; n < runeOffset && i < len(b); n++ {
		_, size := utf8.DecodeRune(b[i:])
		i += size
	}
	return i
}

// SafeCut backs off to the start of the rune containing byte offset i,
// so a cut at the returned offset never splits a UTF-8 sequence.
func SafeCut(b []byte, i int) int {
	if i >= len(b) {
		return len(b)
	}
	for i > 0 && !utf8.RuneStart(b[i]) {
		i--
	}
	return i
}

// TailStart returns the byte offset where the trailing n runes of b begin,
// and how many runes that tail holds (less than n when b is shorter).
func TailStart(b []byte, n int) (int, int) {
	i := len(b)
	count := 0
	for count < n && i > 0 {
		_, size := utf8.DecodeLastRune(b[:i])
		i -= size
		count++
	}
	return i, count
}
