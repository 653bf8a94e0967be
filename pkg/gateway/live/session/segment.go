package session

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SentenceSegmenter turns an append-only stream of text deltas into whole
// sentences ready for synthesis. A sentence ends at the first '.', '!' or
// '?', optionally followed by a single closing quote mark; whitespace after
// the boundary is consumed with the sentence so the remainder never starts
// mid-gap. The zero value is ready to use.
//
// Feeding the same text in deltas of any size yields the same sentence
// sequence as feeding it all at once: a cut is deferred while the
// terminator is the final rune in the buffer, because a closing quote may
// still arrive with the next delta.
type SentenceSegmenter struct {
	buf strings.Builder
}

// Feed appends one delta and returns every sentence completed by it,
// trimmed, in order. Sentences that trim to nothing are dropped but their
// span is still consumed.
func (g *SentenceSegmenter) Feed(delta string) []string {
	if delta != "" {
		g.buf.WriteString(delta)
	}
	var out []string
	for {
		buf := g.buf.String()
		cut := sentenceCut(buf)
		if cut <= 0 {
			return out
		}
		sentence := strings.TrimSpace(buf[:cut])
		rest := buf[cut:]
		g.buf.Reset()
		g.buf.WriteString(rest)
		if sentence != "" {
			out = append(out, sentence)
		}
	}
}

// Flush returns the trimmed remainder as a final sentence and resets the
// buffer. ok is false when only whitespace (or nothing) was left.
func (g *SentenceSegmenter) Flush() (string, bool) {
	rest := strings.TrimSpace(g.buf.String())
	g.buf.Reset()
	if rest == "" {
		return "", false
	}
	return rest, true
}

// Pending reports the unconsumed tail of the stream.
func (g *SentenceSegmenter) Pending() string {
	return g.buf.String()
}

func isSentenceTerminator(r rune) bool {
	return r == '.' || r == '?' || r == '!'
}

func isClosingQuote(r rune) bool {
	return r == '"' || r == '”' || r == '’'
}

// sentenceCut returns the byte length of the earliest complete sentence
// span in s: everything through the first terminator, one closing quote if
// present, and the whitespace run that follows. Zero means no complete
// sentence yet, including the case where the terminator still sits at the
// end of the buffer.
func sentenceCut(s string) int {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if size <= 0 {
			return 0
		}
		if !isSentenceTerminator(r) {
			i += size
			continue
		}
		j := i + size
		if j >= len(s) {
			return 0
		}
		r2, sz2 := utf8.DecodeRuneInString(s[j:])
		if sz2 > 0 && isClosingQuote(r2) {
			j += sz2
		}
		for j < len(s) {
			r2, sz2 = utf8.DecodeRuneInString(s[j:])
			if sz2 <= 0 || !unicode.IsSpace(r2) {
				break
			}
			j += sz2
		}
		return j
	}
	return 0
}
