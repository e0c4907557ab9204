package tts

import (
	"regexp"
	"strings"
)

// Fragment is a speakable slice of a reply. Ordinals are dense and zero-based
// in left-to-right text order.
type Fragment struct {
	Ordinal int
	Text    string
}

var (
	roleLabel        = regexp.MustCompile(`(?i)^(asistente|assistant)\s*:\s*`)
	sentenceTerminal = regexp.MustCompile(`[.!?]+`)
)

// Chunker splits replies into fragments, merging sentences shorter than
// MinWords so that no synthesis round-trip is spent on a two-word sentence.
type Chunker struct {
	MinWords int
}

// NewChunker returns a Chunker; minWords <= 0 means every sentence stands alone.
func NewChunker(minWords int) Chunker {
	if minWords < 1 {
		minWords = 1
	}
	return Chunker{MinWords: minWords}
}

// Split returns the ordered fragments of reply. Empty input yields nil.
func (c Chunker) Split(reply string) []Fragment {
	text := roleLabel.ReplaceAllString(strings.TrimSpace(reply), "")

	var (
		chunks []string
		acc    string
	)
	for _, sentence := range sentenceTerminal.Split(text, -1) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if len(strings.Fields(sentence)) < c.MinWords {
			if acc != "" {
				acc += ". " + sentence
			} else {
				acc = sentence
			}
			continue
		}
		if acc != "" {
			chunks = append(chunks, acc)
			acc = ""
		}
		chunks = append(chunks, sentence)
	}
	if acc != "" {
		chunks = append(chunks, acc)
	}

	var out []Fragment
	for _, ch := range chunks {
		if strings.TrimSpace(ch) == "" {
			continue
		}
		out = append(out, Fragment{Ordinal: len(out), Text: ch})
	}
	return out
}
