// Package chunker splits normalized text into overlapping,
// sentence-aware segments for the embedding collaborator. It performs
// no I/O; the same input always produces the same chunks.
package chunker

import (
	"strings"
	"unicode"

	"github.com/krabiTim/knownothing-creative-rag/internal/models"
)

const (
	DefaultChunkSize = 500
	DefaultOverlap   = 50
)

// Split cuts text into chunks of at most chunkSize runes, each
// overlapping its predecessor by roughly overlap runes. A cut is moved
// back to the nearest sentence-terminating period or newline when that
// boundary falls in the back half of the window. Offsets are rune
// offsets into text and point at the exact trimmed span of each chunk.
func Split(text string, chunkSize, overlap int) []models.Chunk {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = chunkSize / 10
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	if len(runes) <= chunkSize {
		chunk, ok := makeChunk(runes, 0, len(runes), 0)
		if !ok {
			return nil
		}
		return []models.Chunk{chunk}
	}

	var chunks []models.Chunk
	cursor := 0
	index := 0

	for cursor < len(runes) {
		end := cursor + chunkSize
		if end >= len(runes) {
			if chunk, ok := makeChunk(runes, cursor, len(runes), index); ok {
				chunks = append(chunks, chunk)
			}
			break
		}

		if cut := lastBoundary(runes[cursor:end]); cut > chunkSize/2 {
			end = cursor + cut + 1
		}

		if chunk, ok := makeChunk(runes, cursor, end, index); ok {
			chunks = append(chunks, chunk)
			index++
		}

		// The post-overlap cursor must strictly increase; when the
		// overlap would swallow the whole advance, continue without it.
		next := end - overlap
		if next <= cursor {
			next = end
		}
		cursor = next
	}

	return chunks
}

// lastBoundary returns the index of the last period or newline in the
// window, or -1.
func lastBoundary(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == '.' || window[i] == '\n' {
			return i
		}
	}
	return -1
}

// makeChunk trims surrounding whitespace off runes[start:end] while
// keeping the offsets pointing at the retained span. Returns false for
// a chunk that is empty after trimming.
func makeChunk(runes []rune, start, end, index int) (models.Chunk, bool) {
	for start < end && unicode.IsSpace(runes[start]) {
		start++
	}
	for end > start && unicode.IsSpace(runes[end-1]) {
		end--
	}
	if start >= end {
		return models.Chunk{}, false
	}

	text := string(runes[start:end])

	return models.Chunk{
		ChunkIndex:  index,
		Text:        text,
		StartOffset: start,
		EndOffset:   end,
		WordCount:   len(strings.Fields(text)),
	}, true
}
