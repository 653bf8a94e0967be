package session

import (
	"strings"
	"testing"
)

func feedAll(t *testing.T, g *SentenceSegmenter, deltas ...string) []string {
	t.Helper()
	var got []string
	for _, d := range deltas {
		got = append(got, g.Feed(d)...)
	}
	if last, ok := g.Flush(); ok {
		got = append(got, last)
	}
	return got
}

func sentencesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSegmenter_SentenceSpansTwoDeltas(t *testing.T) {
	var g SentenceSegmenter

	got := g.Feed("Hi there. How are ")
	if len(got) != 1 || got[0] != "Hi there." {
		t.Fatalf("first feed = %v, want [Hi there.]", got)
	}
	got = g.Feed("you? ")
	if len(got) != 1 || got[0] != "How are you?" {
		t.Fatalf("second feed = %v, want [How are you?]", got)
	}
	if _, ok := g.Flush(); ok {
		t.Fatalf("flush after full consumption should be empty, pending=%q", g.Pending())
	}
}

func TestSegmenter_MultipleSentencesInOneDelta(t *testing.T) {
	var g SentenceSegmenter
	got := g.Feed("One. Two! Three? Four")
	want := []string{"One.", "Two!", "Three?"}
	if !sentencesEqual(got, want) {
		t.Fatalf("sentences = %v, want %v", got, want)
	}
	if g.Pending() != "Four" {
		t.Fatalf("pending = %q, want %q", g.Pending(), "Four")
	}
}

func TestSegmenter_ClosingQuoteStaysWithSentence(t *testing.T) {
	var g SentenceSegmenter
	got := feedAll(t, &g, `He said "Stop." Then he left.`)
	want := []string{`He said "Stop."`, "Then he left."}
	if !sentencesEqual(got, want) {
		t.Fatalf("sentences = %v, want %v", got, want)
	}
}

func TestSegmenter_QuoteArrivingInNextDelta(t *testing.T) {
	var g SentenceSegmenter
	got := feedAll(t, &g, "She whispered “go.", "” Nobody moved. ")
	want := []string{"She whispered “go.”", "Nobody moved."}
	if !sentencesEqual(got, want) {
		t.Fatalf("sentences = %v, want %v", got, want)
	}
}

func TestSegmenter_ChunkedEquivalence(t *testing.T) {
	input := "Well… hello there. It’s done.” Next one! Ready? Tail without end"
	var whole SentenceSegmenter
	want := feedAll(t, &whole, input)

	runes := []rune(input)
	for size := 1; size <= len(runes); size++ {
		var g SentenceSegmenter
		var deltas []string
		for i := 0; i < len(runes); i += size {
			end := i + size
			if end > len(runes) {
				end = len(runes)
			}
			deltas = append(deltas, string(runes[i:end]))
		}
		got := feedAll(t, &g, deltas...)
		if !sentencesEqual(got, want) {
			t.Fatalf("chunk size %d: sentences = %v, want %v", size, got, want)
		}
	}
}

func TestSegmenter_TrailingWhitespaceConsumedWithSpan(t *testing.T) {
	var g SentenceSegmenter
	g.Feed("Done.   \n next")
	if g.Pending() != "next" {
		t.Fatalf("pending = %q, want %q", g.Pending(), "next")
	}
}

func TestSegmenter_FlushReturnsRemainder(t *testing.T) {
	var g SentenceSegmenter
	g.Feed("no terminator here")
	last, ok := g.Flush()
	if !ok || last != "no terminator here" {
		t.Fatalf("flush = %q/%v, want %q/true", last, ok, "no terminator here")
	}
	if g.Pending() != "" {
		t.Fatalf("pending after flush = %q, want empty", g.Pending())
	}
}

func TestSegmenter_FlushWhitespaceOnlyIsDiscarded(t *testing.T) {
	var g SentenceSegmenter
	g.Feed("   \n\t ")
	if last, ok := g.Flush(); ok {
		t.Fatalf("flush = %q, want none", last)
	}
}

func TestSegmenter_TerminatorAtBufferEndWaitsForMore(t *testing.T) {
	var g SentenceSegmenter
	if got := g.Feed("Hello."); len(got) != 0 {
		t.Fatalf("feed = %v, want none until more text or flush", got)
	}
	got := g.Feed(" Bye")
	if len(got) != 1 || got[0] != "Hello." {
		t.Fatalf("feed = %v, want [Hello.]", got)
	}
	if g.Pending() != "Bye" {
		t.Fatalf("pending = %q, want %q", g.Pending(), "Bye")
	}
}

func TestSegmenter_ConsumedSpansCoverInput(t *testing.T) {
	input := "A. B! C? leftover"
	var g SentenceSegmenter
	g.Feed(input)
	if g.Pending() != "leftover" {
		t.Fatalf("pending = %q, want %q", g.Pending(), "leftover")
	}
	if !strings.HasSuffix(input, g.Pending()) {
		t.Fatalf("pending = %q is not the uncut tail of input", g.Pending())
	}
}
