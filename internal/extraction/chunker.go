package extraction

import "strings"

// Token accounting is a character-count estimate; the model's real tokenizer
// is never consulted.
const (
	charsPerToken     = 4
	promptOverhead    = 500
	defaultCallCeil   = 50_000
	defaultChunkSize  = 30_000
	defaultChunkShare = 2_000
)

// EstimateTokens approximates the token cost of sending text to the model,
// including the fixed prompt overhead.
func EstimateTokens(text string) int {
	return (len(text)+charsPerToken-1)/charsPerToken + promptOverhead
}

// Chunk is one transcript slice with its character offset into the original,
// so candidate spans can be mapped back to absolute positions.
type Chunk struct {
	Text   string
	Offset int
	Index  int
}

type chunker struct {
	targetChars  int
	overlapChars int
}

func newChunker(targetTokens, overlapTokens int) chunker {
	if targetTokens <= 0 {
		targetTokens = defaultChunkSize
	}
	if overlapTokens <= 0 {
		overlapTokens = defaultChunkShare
	}
	return chunker{
		targetChars:  targetTokens * charsPerToken,
		overlapChars: overlapTokens * charsPerToken,
	}
}

// split cuts the transcript into chunks on sentence boundaries, never
// mid-sentence, with the tail of each chunk repeated at the head of the next
// so statements straddling a boundary survive.
func (c chunker) split(text string) []Chunk {
	if len(text) <= c.targetChars {
		return []Chunk{{Text: text}}
	}

	sentences := splitSentences(text)

	var chunks []Chunk
	var sb strings.Builder
	chunkStart := 0
	pos := 0

	flush := func() {
		if sb.Len() == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			Text:   sb.String(),
			Offset: chunkStart,
			Index:  len(chunks),
		})
		sb.Reset()
	}

	for _, sentence := range sentences {
		if sb.Len() > 0 && sb.Len()+len(sentence) > c.targetChars {
			flush()
			// Carry the overlap window back from the current position.
			overlapFrom := pos - c.overlapChars
			if overlapFrom < 0 {
				overlapFrom = 0
			}
			chunkStart = overlapFrom
			sb.WriteString(text[overlapFrom:pos])
		}
		if sb.Len() == 0 && len(chunks) == 0 {
			chunkStart = pos
		}
		sb.WriteString(sentence)
		pos += len(sentence)
	}
	flush()

	return chunks
}

// splitSentences partitions text into sentence-terminated segments. The
// concatenation of all segments is exactly the input.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?', '\n':
			end := i + 1
			// Swallow trailing spaces so the next sentence starts clean.
			for end < len(text) && text[end] == ' ' {
				end++
			}
			out = append(out, text[start:end])
			i = end - 1
			start = end
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}
