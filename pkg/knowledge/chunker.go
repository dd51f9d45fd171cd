package knowledge

import (
	"regexp"
	"strings"
)

const (
	defaultChunkSize    = 400
	defaultChunkOverlap = 50
)

var paragraphSplit = regexp.MustCompile(`\n\s*\n`)

// Chunk is one overlapping segment of a source document.
type Chunk struct {
	Content   string
	WordCount int
}

// Chunker splits text into word-bounded, paragraph-aligned segments. When a
// chunk closes, its last paragraph carries over into the next chunk if it
// fits within the overlap budget.
type Chunker struct {
	Size    int // target words per chunk
	Overlap int // words carried between chunks
}

// NewChunker creates a chunker with the given targets; non-positive values
// fall back to 400/50.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 {
		overlap = defaultChunkOverlap
	}
	return &Chunker{Size: size, Overlap: overlap}
}

// Split chunks text on paragraph boundaries.
func (c *Chunker) Split(text string) []Chunk {
	var paragraphs []string
	for _, p := range paragraphSplit.Split(text, -1) {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}

	var chunks []Chunk
	var current []string
	currentWords := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			Content:   strings.Join(current, "\n\n"),
			WordCount: currentWords,
		})
	}

	for _, para := range paragraphs {
		paraWords := len(strings.Fields(para))

		if currentWords+paraWords > c.Size && len(current) > 0 {
			flush()

			last := current[len(current)-1]
			lastWords := len(strings.Fields(last))
			if lastWords <= c.Overlap {
				current = []string{last}
				currentWords = lastWords
			} else {
				current = nil
				currentWords = 0
			}
		}

		current = append(current, para)
		currentWords += paraWords
	}
	flush()

	return chunks
}
