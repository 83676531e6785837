// Package indexer ingests learning materials: it splits their text into fragments, embeds
// them and writes them to storage and to both search indexes.
package indexer

import (
	"strings"
	"unicode/utf8"
)

// Chunker splits text into sentence-aligned fragments with a word budget. Consecutive
// fragments share trailing sentences up to the overlap budget.
type Chunker struct {
	maxWords     int
	overlapWords int
}

// NewChunker creates a chunker. A non-positive maxWords defaults to 120; the overlap is
// clamped below maxWords.
func NewChunker(maxWords, overlapWords int) *Chunker {
	if maxWords <= 0 {
		maxWords = 120
	}
	if overlapWords < 0 {
		overlapWords = 0
	}
	if overlapWords >= maxWords {
		overlapWords = maxWords / 2
	}
	return &Chunker{maxWords: maxWords, overlapWords: overlapWords}
}

// Chunk returns the fragment texts of text in order. Sentences longer than the budget are
// cut into word windows.
func (c *Chunker) Chunk(text string) []string {
	var (
		chunks []string
		cur    [][]string
		words  int
		fresh  bool
	)
	flush := func() {
		chunks = append(chunks, joinSentences(cur))
		kept, keptWords := 0, 0
		for i := len(cur) - 1; i >= 0 && keptWords+len(cur[i]) <= c.overlapWords; i-- {
			keptWords += len(cur[i])
			kept++
		}
		cur = append([][]string(nil), cur[len(cur)-kept:]...)
		words = keptWords
		fresh = false
	}

	for _, s := range splitSentences(text) {
		if len(s) > c.maxWords {
			if fresh {
				flush()
			}
			chunks = append(chunks, c.window(s)...)
			cur, words = nil, 0
			continue
		}
		if words+len(s) > c.maxWords {
			if fresh {
				flush()
			}
			for len(cur) > 0 && words+len(s) > c.maxWords {
				words -= len(cur[0])
				cur = cur[1:]
			}
		}
		cur = append(cur, s)
		words += len(s)
		fresh = true
	}
	if fresh {
		chunks = append(chunks, joinSentences(cur))
	}
	return chunks
}

func (c *Chunker) window(words []string) []string {
	var out []string
	step := c.maxWords - c.overlapWords
	for i := 0; i < len(words); i += step {
		end := min(i+c.maxWords, len(words))
		out = append(out, strings.Join(words[i:end], " "))
		if end == len(words) {
			break
		}
	}
	return out
}

func joinSentences(sentences [][]string) string {
	parts := make([]string, len(sentences))
	for i, s := range sentences {
		parts[i] = strings.Join(s, " ")
	}
	return strings.Join(parts, " ")
}

// splitSentences groups the words of text into sentences. A word ends a sentence when it
// ends in terminal punctuation, ignoring closing quotes and brackets.
func splitSentences(text string) [][]string {
	var (
		out [][]string
		cur []string
	)
	for _, w := range strings.Fields(text) {
		cur = append(cur, w)
		if endsSentence(w) {
			out = append(out, cur)
			cur = nil
		}
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

func endsSentence(w string) bool {
	w = strings.TrimRight(w, "\"'”’)]»")
	r, _ := utf8.DecodeLastRuneInString(w)
	return r == '.' || r == '!' || r == '?' || r == '…'
}
