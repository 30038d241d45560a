package pipeline

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// WakeScrubber removes a wake phrase that leaked into the head of a
// transcript. The keyword gate truncates audio at the detection window, but
// the window quantisation can leave part of the phrase in the transcribed
// samples; whisper then renders it with arbitrary spelling ("porcupine",
// "porky pine"). Matching is therefore phonetic, not literal.
type WakeScrubber struct {
	// keywords holds each configured phrase pre-split into words.
	keywords [][]string
}

// NewWakeScrubber creates a scrubber for the configured wake phrases.
func NewWakeScrubber(keywords []string) *WakeScrubber {
	w := &WakeScrubber{}
	for _, kw := range keywords {
		words := strings.Fields(strings.ToLower(kw))
		if len(words) > 0 {
			w.keywords = append(w.keywords, words)
		}
	}
	return w
}

// Scrub drops a leading wake phrase from text, if present, and returns the
// remainder.
func (w *WakeScrubber) Scrub(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return text
	}

	for _, phrase := range w.keywords {
		if len(phrase) > len(fields) {
			continue
		}
		match := true
		for i, kw := range phrase {
			if !soundsLike(trimWord(fields[i]), kw) {
				match = false
				break
			}
		}
		if match {
			return strings.Join(fields[len(phrase):], " ")
		}
	}
	return text
}

// trimWord lowercases a transcript token and strips surrounding punctuation.
func trimWord(s string) string {
	return strings.Trim(strings.ToLower(s), ".,!?;:'\"")
}

// soundsLike reports whether two words match literally or by Double
// Metaphone code.
func soundsLike(a, b string) bool {
	if a == b {
		return true
	}
	if a == "" || b == "" {
		return false
	}
	ap, as := matchr.DoubleMetaphone(a)
	bp, bs := matchr.DoubleMetaphone(b)
	if ap != "" && (ap == bp || ap == bs) {
		return true
	}
	return as != "" && (as == bp || as == bs)
}
