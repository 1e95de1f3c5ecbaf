package engine

// Default chunking parameters, in runes.
const (
	DefaultChunkLength  = 2000
	DefaultChunkOverlap = 200
)

// Boundary tiers tried in order when choosing where to cut a passage.
var (
	paragraphBreaks = []string{"\n\n"}
	sentenceBreaks  = []string{". ", "! ", "? ", "\n"}
	wordBreaks      = []string{" "}
	boundaryTiers   = [][]string{paragraphBreaks, sentenceBreaks, wordBreaks}
)

// Chunker splits a transcript into overlapping passages.
type Chunker struct {
	MaxLength int
	Overlap   int
}

// DefaultChunker returns the 2000/200 chunker.
func DefaultChunker() Chunker {
	return Chunker{MaxLength: DefaultChunkLength, Overlap: DefaultChunkOverlap}
}

// Split returns passages covering text with no gaps, in text order.
// Every passage is at most MaxLength runes; consecutive passages share at most Overlap runes.
// Text no longer than MaxLength comes back as a single passage.
func (c Chunker) Split(text string) []Passage {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}
	maxLen := c.MaxLength
	if maxLen <= 0 {
		maxLen = DefaultChunkLength
	}
	overlap := c.Overlap
	if overlap < 0 || overlap >= maxLen {
		overlap = maxLen / 10
	}

	var passages []Passage
	start := 0
	for {
		if n-start <= maxLen {
			passages = append(passages, newPassage(runes, len(passages), start, n))
			return passages
		}
		window := runes[start : start+maxLen]
		// A cut must leave more than overlap runes so the next start moves forward.
		cut := cutPoint(window, overlap+1, boundaryTiers)
		end := start + cut
		passages = append(passages, newPassage(runes, len(passages), start, end))
		start = overlapStart(runes, end-overlap, end)
	}
}

func newPassage(runes []rune, idx, start, end int) Passage {
	return Passage{Index: idx, Start: start, End: end, Text: string(runes[start:end])}
}

// cutPoint returns the length of the passage to take from window. It tries each
// boundary tier in turn, recursing to finer tiers, and falls back to a hard cut.
func cutPoint(window []rune, minLen int, tiers [][]string) int {
	if len(tiers) == 0 {
		return len(window)
	}
	best := -1
	for _, sep := range tiers[0] {
		if i := lastIndex(window, sep); i >= 0 {
			if end := i + len([]rune(sep)); end >= minLen && end > best {
				best = end
			}
		}
	}
	if best > 0 {
		return best
	}
	return cutPoint(window, minLen, tiers[1:])
}

// overlapStart picks the first word start in [from, end] so the overlap
// does not begin mid-word. Returns from when no boundary exists.
func overlapStart(runes []rune, from, end int) int {
	for i := from; i < end; i++ {
		if i > 0 && isSpace(runes[i-1]) && !isSpace(runes[i]) {
			return i
		}
	}
	return from
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t'
}

// lastIndex is strings.LastIndex over runes.
func lastIndex(rs []rune, sep string) int {
	sr := []rune(sep)
	for i := len(rs) - len(sr); i >= 0; i-- {
		match := true
		for j := range sr {
			if rs[i+j] != sr[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
