package chunker

import (
	"regexp"
	"strings"
)

// CodeBlock is one fenced code block lifted out of markdown text.
type CodeBlock struct {
	Language string
	Code     string
}

var fencedBlock = regexp.MustCompile("(?s)```(\\w*)\\n(.*?)```")

// ExtractCodeBlocks returns the fenced code blocks of text in order of
// appearance. A block without a language tag reports "unknown"; blocks
// containing only whitespace are dropped.
func ExtractCodeBlocks(text string) []CodeBlock {
	matches := fencedBlock.FindAllStringSubmatch(text, -1)

	var blocks []CodeBlock
	for _, m := range matches {
		lang, code := m[1], strings.TrimSpace(m[2])
		if code == "" {
			continue
		}
		if lang == "" {
			lang = "unknown"
		}
		blocks = append(blocks, CodeBlock{Language: lang, Code: code})
	}
	return blocks
}
