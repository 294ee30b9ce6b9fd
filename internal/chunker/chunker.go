// Package chunker implements recursive character text splitting with
// separator-aware boundaries and configurable overlap.
package chunker

import "strings"

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200

	// lookback bounds how far before the window end a separator may sit
	// and still be honored as a split point.
	lookback = 200
)

// DefaultSeparators is ordered by priority, strongest break first. The
// final empty separator always matches and degrades to a hard cut.
var DefaultSeparators = []string{"\n\n", "\n", "。", "！", "？", "；", " ", ""}

// Options configures Split. Zero values fall back to the defaults; a
// negative ChunkOverlap disables overlap, a nil Separators slice means
// DefaultSeparators, and an explicit empty slice disables separator
// scanning entirely.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.ChunkOverlap == 0 {
		o.ChunkOverlap = DefaultChunkOverlap
	} else if o.ChunkOverlap < 0 {
		o.ChunkOverlap = 0
	}
	if o.Separators == nil {
		o.Separators = DefaultSeparators
	}
	return o
}

// Split segments text into chunks of at most ChunkSize bytes, preferring
// to cut at the highest-priority separator found within the lookback
// region before the window end. A separator split is accepted only when
// the resulting chunk exceeds half the chunk size; otherwise the window
// is cut hard at its boundary. Consecutive chunks overlap by up to
// ChunkOverlap bytes. Pure function: identical inputs yield identical
// output.
func Split(text string, opts Options) []string {
	opts = opts.withDefaults()

	if len(text) == 0 {
		return nil
	}
	if len(text) <= opts.ChunkSize {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	}

	var chunks []string
	start := 0

	for start < len(text) {
		end := start + opts.ChunkSize
		if end > len(text) {
			end = len(text)
		}

		splitPoint := end

		if end < len(text) {
			best := -1
			for _, sep := range opts.Separators {
				searchStart := end - lookback
				if searchStart < start {
					searchStart = start
				}
				idx := lastIndexBefore(text, sep, end)
				if idx >= searchStart {
					best = idx + len(sep)
					break
				}
			}

			// A split too close to the window start would produce runt
			// chunks; fall back to a hard cut at the boundary.
			if best > start+opts.ChunkSize/2 {
				splitPoint = best
			}
		}

		trimmed := strings.TrimSpace(text[start:splitPoint])
		if trimmed != "" {
			chunks = append(chunks, trimmed)
		}

		if splitPoint >= len(text) {
			break
		}

		next := splitPoint - opts.ChunkOverlap
		if next <= start {
			// Overlap must never move the window backwards.
			next = splitPoint
		}
		start = next
	}

	return chunks
}

// lastIndexBefore returns the byte index of the last occurrence of sep
// that ends at or before end. The empty separator matches at end.
func lastIndexBefore(text, sep string, end int) int {
	if sep == "" {
		return end
	}
	return strings.LastIndex(text[:end], sep)
}
