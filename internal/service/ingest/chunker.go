package ingest

import (
	"strconv"
	"strings"
	"unicode"
)

// SplitTranscript cuts text into windows of at most size runes that overlap by
// overlap runes. A window that would split a word ends at its last space instead.
func SplitTranscript(text string, size, overlap int) []string {
	r := []rune(strings.TrimSpace(text))
	if len(r) == 0 {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	out := make([]string, 0, len(r)/(size-overlap)+1)
	start := 0
	for start < len(r) {
		end := start + size
		if end > len(r) {
			end = len(r)
		}
		if end < len(r) {
			if cut := lastSpace(r[start:end]); cut > 0 {
				end = start + cut
			}
		}

		if chunk := strings.TrimSpace(string(r[start:end])); chunk != "" {
			out = append(out, chunk)
		}
		if end >= len(r) {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

func lastSpace(r []rune) int {
	for i := len(r) - 1; i >= 0; i-- {
		if unicode.IsSpace(r[i]) {
			return i
		}
	}
	return -1
}

// ChunkID names the vector holding chunk index of an episode revision.
// Revision 0 keeps the plain "<episode>-<index>" form.
func ChunkID(episodeID string, revision, index int) string {
	if revision > 0 {
		return episodeID + "-r" + strconv.Itoa(revision) + "-" + strconv.Itoa(index)
	}
	return episodeID + "-" + strconv.Itoa(index)
}

// ChunkIDs lists the vector ids of an episode revision stored as count chunks.
func ChunkIDs(episodeID string, revision, count int) []string {
	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		ids = append(ids, ChunkID(episodeID, revision, i))
	}
	return ids
}
