package chunker

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/maraichr/docstream/internal/model"
)

const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200
)

// Chunker splits a document's text into retrievable segments.
type Chunker interface {
	Chunk(doc *model.Document) []model.Chunk
	EstimateChunkCount(doc *model.Document) int
}

// SentenceChunker packs whole sentences into chunks of roughly chunkSize
// characters, seeding each chunk after the first with up to overlap
// characters of trailing sentences from its predecessor. Sentences are never
// split, so a single sentence longer than chunkSize is emitted whole.
type SentenceChunker struct {
	chunkSize int
	overlap   int
}

func New(chunkSize, overlap int) *SentenceChunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	return &SentenceChunker{chunkSize: chunkSize, overlap: overlap}
}

// Chunk materializes the full chunk sequence for doc. The function is total:
// any input degrades to fewer or larger chunks, never an error.
func (c *SentenceChunker) Chunk(doc *model.Document) []model.Chunk {
	if strings.TrimSpace(doc.Text) == "" {
		return nil
	}

	sentences := splitSentences(doc.Text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []model.Chunk
	var current []string
	currentLen := 0
	startOffset := 0
	index := 0

	for _, sentence := range sentences {
		if currentLen+len(sentence) > c.chunkSize && len(current) > 0 {
			text := strings.Join(current, " ")
			chunks = append(chunks, newChunk(doc.ID, index, text, startOffset, len(current)))
			index++

			seed, seedLen := c.overlapSeed(current)
			advance := len(text) - c.overlap
			if advance < 0 {
				advance = 0
			}
			startOffset += advance
			current = seed
			currentLen = seedLen
		}

		current = append(current, sentence)
		currentLen += len(sentence) + 1
	}

	if len(current) > 0 {
		text := strings.Join(current, " ")
		chunks = append(chunks, newChunk(doc.ID, index, text, startOffset, len(current)))
	}

	return chunks
}

// EstimateChunkCount predicts how many chunks Chunk will produce without
// materializing them. When overlap >= chunkSize the effective step falls back
// to chunkSize to keep the step positive.
func (c *SentenceChunker) EstimateChunkCount(doc *model.Document) int {
	if strings.TrimSpace(doc.Text) == "" {
		return 0
	}

	step := c.chunkSize - c.overlap
	if step <= 0 {
		step = c.chunkSize
	}

	count := (len(doc.Text) + step - 1) / step
	if count < 1 {
		count = 1
	}
	return count
}

// overlapSeed walks the closed chunk's sentences in reverse, accumulating
// whole sentences while their joined length stays within the overlap budget.
func (c *SentenceChunker) overlapSeed(closed []string) ([]string, int) {
	var seed []string
	seedLen := 0

	for i := len(closed) - 1; i >= 0; i-- {
		add := len(closed[i])
		if len(seed) > 0 {
			add++ // joining space
		}
		if seedLen+add > c.overlap {
			break
		}
		seed = append([]string{closed[i]}, seed...)
		seedLen += add
	}

	return seed, seedLen
}

func newChunk(documentID uuid.UUID, index int, text string, startOffset, sentenceCount int) model.Chunk {
	return model.Chunk{
		ID:         fmt.Sprintf("%s_chunk_%d", documentID, index),
		DocumentID: documentID,
		Text:       text,
		Metadata: map[string]string{
			model.ChunkMetaIndex:         strconv.Itoa(index),
			model.ChunkMetaStartOffset:   strconv.Itoa(startOffset),
			model.ChunkMetaEndOffset:     strconv.Itoa(startOffset + len(text)),
			model.ChunkMetaSentenceCount: strconv.Itoa(sentenceCount),
		},
	}
}

// splitSentences breaks text on sentence boundaries: terminal punctuation
// followed by whitespace and an uppercase letter, terminal punctuation
// followed by a newline, or a blank line. Empty results are dropped.
//
// Go's regexp package has no lookahead, so boundaries are found with a hand
// scanner rather than a regex split.
func splitSentences(text string) []string {
	runes := []rune(text)
	var sentences []string
	var b strings.Builder

	flush := func() {
		s := strings.TrimSpace(b.String())
		if s != "" {
			sentences = append(sentences, s)
		}
		b.Reset()
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		b.WriteRune(r)

		if r == '.' || r == '!' || r == '?' {
			j := i + 1
			sawNewline := false
			for j < len(runes) && unicode.IsSpace(runes[j]) {
				if runes[j] == '\n' {
					sawNewline = true
				}
				j++
			}
			atEnd := j >= len(runes)
			if j > i+1 && (sawNewline || atEnd || unicode.IsUpper(runes[j])) {
				flush()
				i = j - 1
				continue
			}
		}

		if r == '\n' && i+1 < len(runes) && runes[i+1] == '\n' {
			j := i + 1
			for j < len(runes) && unicode.IsSpace(runes[j]) {
				j++
			}
			flush()
			i = j - 1
		}
	}

	flush()
	return sentences
}
