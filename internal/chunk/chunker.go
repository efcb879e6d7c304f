// Package chunk segments documents into overlapping, structure-aware
// chunks for indexing.
package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"github.com/finsightlab/recall/internal/config"
	"github.com/finsightlab/recall/internal/store"
)

// headerPattern matches markdown ATX headers (# through ######).
var headerPattern = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// Chunker splits document content on structural boundaries, packing
// paragraphs into chunks near the target size with a trailing overlap
// carried into the next chunk. Every chunk is cut from the original
// content by offset, so chunk text is always a contiguous substring of
// the source document.
type Chunker struct {
	targetSize  int
	overlapSize int
	minSize     int
}

// NewChunker creates a chunker from the given configuration.
func NewChunker(cfg config.ChunkingConfig) *Chunker {
	return &Chunker{
		targetSize:  cfg.TargetSize,
		overlapSize: cfg.OverlapSize,
		minSize:     cfg.MinSize,
	}
}

// span is a half-open byte range into the source content.
type span struct {
	start, end int
}

// section is a run of content under a single heading.
type section struct {
	heading    string
	paragraphs []span
}

// piece is a packed run of paragraphs ready to become a chunk body.
type piece struct {
	span
	heading string
}

// Chunk splits content into chunks for the given document. Chunk IDs
// are derived from the document ID and sequence, so re-chunking the
// same content yields the same IDs.
func (c *Chunker) Chunk(documentID, content string) []*store.Chunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	now := time.Now().UTC()

	var pieces []piece
	for _, sec := range parseSections(content) {
		for _, s := range c.packSpans(content, sec.paragraphs) {
			pieces = append(pieces, piece{span: s, heading: sec.heading})
		}
	}
	pieces = c.mergeFragments(pieces)

	chunks := make([]*store.Chunk, 0, len(pieces))
	for i, p := range pieces {
		start := p.start
		overlap := ""
		if i > 0 && c.overlapSize > 0 {
			prev := pieces[i-1].span
			start = overlapStart(content, prev, c.overlapSize)
			overlap = content[start:prev.end]
		}
		body := content[start:p.end]

		chunks = append(chunks, &store.Chunk{
			ID:          store.ChunkID(documentID, i),
			DocumentID:  documentID,
			Seq:         i,
			Content:     body,
			Overlap:     overlap,
			Heading:     p.heading,
			ContentHash: HashContent(body),
			CreatedAt:   now,
		})
	}
	return chunks
}

// parseSections splits content into heading-scoped sections, each
// holding the byte spans of its paragraphs. Content before any heading
// goes into a section with an empty heading.
func parseSections(content string) []*section {
	var sections []*section
	current := &section{}
	paraStart := -1

	flushPara := func(end int) {
		if paraStart < 0 {
			return
		}
		s := trimSpan(content, span{paraStart, end})
		paraStart = -1
		if s.start < s.end {
			current.paragraphs = append(current.paragraphs, s)
		}
	}
	flushSection := func(end int) {
		flushPara(end)
		if len(current.paragraphs) > 0 {
			sections = append(sections, current)
		}
	}

	for start := 0; start < len(content); {
		lineEnd := len(content)
		next := len(content)
		if idx := strings.IndexByte(content[start:], '\n'); idx >= 0 {
			lineEnd = start + idx
			next = lineEnd + 1
		}
		line := strings.TrimRight(content[start:lineEnd], "\r")

		switch {
		case headerPattern.MatchString(line):
			flushSection(start)
			match := headerPattern.FindStringSubmatch(line)
			current = &section{heading: strings.TrimSpace(match[2])}
		case strings.TrimSpace(line) == "":
			flushPara(start)
		case paraStart < 0:
			paraStart = start
		}
		start = next
	}
	flushSection(len(content))

	return sections
}

// packSpans greedily packs paragraph spans into pieces near the target
// size. A single paragraph longer than the target is split at sentence
// boundaries, falling back to a hard cut.
func (c *Chunker) packSpans(content string, paragraphs []span) []span {
	var pieces []span
	cur := span{-1, -1}

	flush := func() {
		if cur.start >= 0 {
			pieces = append(pieces, cur)
			cur = span{-1, -1}
		}
	}

	for _, p := range paragraphs {
		if p.end-p.start > c.targetSize {
			flush()
			pieces = append(pieces, c.splitLongSpan(content, p)...)
			continue
		}
		if cur.start >= 0 && p.end-cur.start > c.targetSize {
			flush()
		}
		if cur.start < 0 {
			cur = p
		} else {
			cur.end = p.end
		}
	}
	flush()

	return pieces
}

// splitLongSpan cuts an oversized span at the last sentence end that
// fits the target, hard-cutting when a single sentence exceeds it.
func (c *Chunker) splitLongSpan(content string, s span) []span {
	var pieces []span
	start := s.start
	lastSentenceEnd := -1

	for i := s.start; i < s.end; i++ {
		ch := content[i]
		if (ch == '.' || ch == '!' || ch == '?') && i+1 < s.end &&
			(content[i+1] == ' ' || content[i+1] == '\n') {
			lastSentenceEnd = i + 1
		}
		if i-start+1 > c.targetSize {
			cut := lastSentenceEnd
			if cut <= start {
				cut = i
			}
			if p := trimSpan(content, span{start, cut}); p.start < p.end {
				pieces = append(pieces, p)
			}
			start = cut
			lastSentenceEnd = -1
		}
	}
	if p := trimSpan(content, span{start, s.end}); p.start < p.end {
		pieces = append(pieces, p)
	}
	return pieces
}

// mergeFragments folds pieces below the minimum size into their
// predecessor by extending the predecessor's span, so tiny trailing
// fragments do not pollute the index.
func (c *Chunker) mergeFragments(pieces []piece) []piece {
	if len(pieces) < 2 {
		return pieces
	}

	merged := pieces[:0]
	for _, p := range pieces {
		if len(merged) > 0 && p.end-p.start < c.minSize {
			merged[len(merged)-1].end = p.end
			continue
		}
		merged = append(merged, p)
	}
	return merged
}

// overlapStart returns the offset where the previous piece's trailing
// overlap begins, snapped forward to a word boundary.
func overlapStart(content string, prev span, overlapSize int) int {
	start := prev.end - overlapSize
	if start < prev.start {
		return prev.start
	}
	tail := content[start:prev.end]
	if idx := strings.IndexAny(tail, " \n"); idx >= 0 && idx < len(tail)-1 {
		start += idx + 1
	}
	return start
}

// trimSpan shrinks a span past leading and trailing ASCII whitespace.
func trimSpan(content string, s span) span {
	for s.start < s.end && isSpace(content[s.start]) {
		s.start++
	}
	for s.end > s.start && isSpace(content[s.end-1]) {
		s.end--
	}
	return s
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// HashContent returns the hex SHA-256 digest of content.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
