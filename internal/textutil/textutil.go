package textutil

import (
	"unicode"
	"unicode/utf8"
)

// terminalPunct are the rune classes that end a sentence. Covers both
// ASCII and fullwidth CJK forms since scripts mix them freely.
var terminalPunct = map[rune]bool{
	'.': true,
	'!': true,
	'?': true,
	'…': true,
	'。': true,
	'！': true,
	'？': true,
}

// SplitSentences partitions text into sentences. Each sentence keeps its
// terminal punctuation and any whitespace that follows it, so the parts
// concatenate back to the original text. A fragment containing no letters
// or digits is merged into its neighbor rather than standing alone.
func SplitSentences(text string) []string {
	if text == "" {
		return nil
	}

	var (
		parts   []string
		start   int
		inBreak bool
	)
	for i, r := range text {
		if terminalPunct[r] {
			inBreak = true
			continue
		}
		if !inBreak {
			continue
		}
		if unicode.IsSpace(r) {
			// Trailing whitespace rides with the finished sentence.
			continue
		}
		parts = append(parts, text[start:i])
		start = i
		inBreak = false
	}
	if start < len(text) {
		parts = append(parts, text[start:])
	}
	return mergeBareFragments(parts)
}

// PackChunks groups sentences into chunks whose combined UTF-8 byte
// length stays at or under limit. A single sentence that exceeds the
// limit on its own is split on commas, then whitespace, then rune
// boundaries as a last resort. Input order is preserved and no bytes are
// added or dropped. A non-positive limit yields a single chunk.
func PackChunks(sentences []string, limit int) [][]string {
	if len(sentences) == 0 {
		return nil
	}
	if limit <= 0 {
		return [][]string{append([]string(nil), sentences...)}
	}

	var (
		chunks  [][]string
		current []string
		size    int
	)
	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, current)
			current = nil
			size = 0
		}
	}
	add := func(piece string) {
		if size+len(piece) > limit {
			flush()
		}
		current = append(current, piece)
		size += len(piece)
	}

	for _, sentence := range sentences {
		if len(sentence) > limit {
			for _, piece := range splitOversize(sentence, limit) {
				add(piece)
			}
			continue
		}
		add(sentence)
	}
	flush()
	return chunks
}

// JoinChunk reassembles the text of one chunk.
func JoinChunk(chunk []string) string {
	switch len(chunk) {
	case 0:
		return ""
	case 1:
		return chunk[0]
	}
	n := 0
	for _, piece := range chunk {
		n += len(piece)
	}
	buf := make([]byte, 0, n)
	for _, piece := range chunk {
		buf = append(buf, piece...)
	}
	return string(buf)
}

func mergeBareFragments(parts []string) []string {
	var out []string
	for _, part := range parts {
		if len(out) > 0 && bareFragment(part) {
			out[len(out)-1] += part
			continue
		}
		out = append(out, part)
	}
	// A bare fragment can only survive at index 0; fold it forward.
	if len(out) > 1 && bareFragment(out[0]) {
		out[1] = out[0] + out[1]
		out = out[1:]
	}
	return out
}

func bareFragment(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func splitOversize(sentence string, limit int) []string {
	var out []string
	for _, seg := range splitAfterRun(sentence, isComma) {
		if len(seg) <= limit {
			out = append(out, seg)
			continue
		}
		for _, piece := range splitAfterRun(seg, unicode.IsSpace) {
			if len(piece) <= limit {
				out = append(out, piece)
				continue
			}
			out = append(out, splitRuneBoundary(piece, limit)...)
		}
	}
	return out
}

func isComma(r rune) bool {
	return r == ',' || r == '，' || r == '、'
}

// splitAfterRun cuts s after every maximal run of runes matching pred.
// The delimiter runes stay attached to the preceding piece.
func splitAfterRun(s string, pred func(rune) bool) []string {
	var (
		parts []string
		start int
		inRun bool
	)
	for i, r := range s {
		if pred(r) {
			inRun = true
			continue
		}
		if inRun {
			parts = append(parts, s[start:i])
			start = i
			inRun = false
		}
	}
	if start < len(s) {
		parts = append(parts, s[start:])
	}
	return parts
}

// splitRuneBoundary hard-cuts s into pieces of at most limit bytes,
// moving each cut back onto a rune boundary. Only a limit smaller than a
// single rune can force a mid-rune cut.
func splitRuneBoundary(s string, limit int) []string {
	var parts []string
	for len(s) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		if cut == 0 {
			cut = limit
		}
		parts = append(parts, s[:cut])
		s = s[cut:]
	}
	if s != "" {
		parts = append(parts, s)
	}
	return parts
}
