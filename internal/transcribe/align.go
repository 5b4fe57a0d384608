package transcribe

import (
	"math"
	"strings"
)

// boundaryTolerance absorbs boundary rounding between provider word and
// segment timestamps. A word is assigned to a segment when its interval lies
// within [start-tolerance, end+tolerance]. Adjacent segments whose
// boundaries overlap within tolerance can both claim a word, and a word in a
// gap can go unassigned; both behaviors are intentionally kept as-is.
const boundaryTolerance = 0.1

// estimatedWordDuration is the per-word duration used when the provider
// returns only a bare text blob.
const estimatedWordDuration = 0.3

// Word is the finest-grained transcript unit. IDs are unique and increasing
// across the whole transcript, not per segment, so clients can stitch word
// selections across segment boundaries.
type Word struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Word  string  `json:"word"`
}

// Segment is a provider-defined span of transcript text. IDs are a dense
// 0-based sequence in provider emission order.
type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

// Align normalizes a raw provider transcript into the canonical segment/word
// tree. Three modes, selected by which fields the provider populated:
//
//  1. words + segments: each segment claims the words whose interval lies
//     within its tolerance window, preserving the provider's global word ids.
//  2. segments only: word timestamps are synthesized by dividing each
//     segment's duration evenly across its whitespace tokens.
//  3. bare text (or nothing): a single segment laid out at a fixed
//     per-word duration.
func Align(raw *RawTranscript) []Segment {
	if len(raw.Segments) == 0 {
		return []Segment{fallbackSegment(raw.Text)}
	}
	if len(raw.Words) > 0 {
		return alignProviderWords(raw)
	}
	return alignEstimated(raw.Segments)
}

// alignProviderWords assigns provider-timestamped words to their segments.
func alignProviderWords(raw *RawTranscript) []Segment {
	all := make([]Word, len(raw.Words))
	for i, w := range raw.Words {
		all[i] = Word{
			ID:    i,
			Start: w.Start,
			End:   w.End,
			Word:  strings.TrimSpace(w.Word),
		}
	}

	segments := make([]Segment, len(raw.Segments))
	for idx, seg := range raw.Segments {
		var words []Word
		for _, w := range all {
			if w.Start >= seg.Start-boundaryTolerance && w.End <= seg.End+boundaryTolerance {
				words = append(words, w)
			}
		}
		segments[idx] = Segment{
			ID:    idx,
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
			Words: words,
		}
	}
	return segments
}

// alignEstimated synthesizes uniform word timestamps for segment-only output.
// Word ids run as a single global counter across segments.
func alignEstimated(rawSegments []RawSegment) []Segment {
	segments := make([]Segment, len(rawSegments))
	wordID := 0

	for idx, seg := range rawSegments {
		text := strings.TrimSpace(seg.Text)
		tokens := strings.Fields(text)

		var words []Word
		if len(tokens) > 0 {
			wordDuration := (seg.End - seg.Start) / float64(len(tokens))
			for i, tok := range tokens {
				start := seg.Start + float64(i)*wordDuration
				words = append(words, Word{
					ID:    wordID,
					Start: round3(start),
					End:   round3(start + wordDuration),
					Word:  tok,
				})
				wordID++
			}
		}

		segments[idx] = Segment{
			ID:    idx,
			Start: seg.Start,
			End:   seg.End,
			Text:  text,
			Words: words,
		}
	}
	return segments
}

// fallbackSegment lays out a bare text blob as one segment at a fixed
// per-word duration. Empty text yields an empty segment with no words.
func fallbackSegment(text string) Segment {
	tokens := strings.Fields(text)

	var words []Word
	for i, tok := range tokens {
		words = append(words, Word{
			ID:    i,
			Start: round3(float64(i) * estimatedWordDuration),
			End:   round3(float64(i+1) * estimatedWordDuration),
			Word:  tok,
		})
	}

	return Segment{
		ID:    0,
		Start: 0,
		End:   round3(float64(len(tokens)) * estimatedWordDuration),
		Text:  text,
		Words: words,
	}
}

// round3 rounds to millisecond precision.
func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
