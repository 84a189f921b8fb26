// Package chunker splits markdown knowledge documents into
// topic-addressable chunks for indexing.
package chunker

import "strings"

// Chunk is one addressable slice of a knowledge document. Section is the
// most recent top-level header seen; Title is the chunk's own header.
type Chunk struct {
	Section string
	Title   string
	Body    string
}

// Split chunks a document at header boundaries. Two header levels are
// recognized: "## " starts a new section (the chunk title equals the
// section), "### " starts a sub-section under the current section. A
// chunk's body runs until the next header of equal-or-higher level.
// Content before the first header becomes an "Introduction" chunk with an
// empty section. Chunks whose body trims to nothing are discarded.
// Single linear pass; chunk order matches document order.
func Split(content string) []Chunk {
	var chunks []Chunk
	section := ""
	title := "Introduction"
	var body []string

	flush := func() {
		text := strings.TrimSpace(strings.Join(body, "\n"))
		if text != "" {
			chunks = append(chunks, Chunk{Section: section, Title: title, Body: text})
		}
		body = body[:0]
	}

	for _, line := range strings.Split(content, "\n") {
		switch {
		case strings.HasPrefix(line, "## "):
			flush()
			section = strings.TrimSpace(strings.TrimPrefix(line, "## "))
			title = section
		case strings.HasPrefix(line, "### "):
			flush()
			title = strings.TrimSpace(strings.TrimPrefix(line, "### "))
		default:
			body = append(body, line)
		}
	}
	flush()

	return chunks
}
