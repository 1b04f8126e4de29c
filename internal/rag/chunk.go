package rag

import "strings"

// DefaultChunkTurns is the number of conversation turns per chunk.
const DefaultChunkTurns = 15

// Chunk is one embeddable slice of a transcript, carrying the meeting
// metadata parsed from the archive header.
type Chunk struct {
	Text    string
	Meeting string
	Date    string
}

// ChunkTranscript splits an archived transcript into chunks of at most
// turns conversation lines. The MEETING and DATE header fields are
// attached to every chunk; a blank line flushes the current buffer so a
// chunk never spans a section break.
func ChunkTranscript(text string, turns int) []Chunk {
	if turns <= 0 {
		turns = DefaultChunkTurns
	}

	var (
		chunks  []Chunk
		buffer  []string
		meeting string
		date    string
	)

	flush := func() {
		if len(buffer) == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			Text:    strings.Join(buffer, "\n"),
			Meeting: meeting,
			Date:    date,
		})
		buffer = buffer[:0]
	}

	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		switch {
		case strings.HasPrefix(line, "=========="):
			continue
		case strings.HasPrefix(line, "MEETING:"):
			meeting = strings.TrimSpace(strings.TrimPrefix(line, "MEETING:"))
			continue
		case strings.HasPrefix(line, "DATE:"):
			date = strings.TrimSpace(strings.TrimPrefix(line, "DATE:"))
			continue
		case strings.TrimSpace(line) == "":
			flush()
			continue
		}

		// Only timestamped speaker lines count as conversation turns.
		if strings.HasPrefix(line, "[") {
			buffer = append(buffer, line)
			if len(buffer) >= turns {
				flush()
			}
		}
	}

	flush()
	return chunks
}
