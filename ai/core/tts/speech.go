package tts

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New()

var spaceRun = regexp.MustCompile(`[ \t]+`)

// Speakable renders markdown as plain text suitable for a voice.
// Emphasis, headings and link targets are dropped; code blocks are skipped.
func Speakable(md string) string {
	src := []byte(md)
	doc := markdown.Parser().Parse(text.NewReader(src))

	var sb strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock, *ast.RawHTML, *ast.Image:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			if entering {
				sb.Write(node.Segment.Value(src))
				if node.HardLineBreak() || node.SoftLineBreak() {
					sb.WriteByte(' ')
				}
			}
		case *ast.String:
			if entering {
				sb.Write(node.Value)
			}
		case *ast.AutoLink:
			if entering {
				sb.Write(node.Label(src))
			}
		case *ast.Paragraph, *ast.TextBlock, *ast.Heading, *ast.ListItem:
			if !entering {
				endSentence(&sb)
			}
		}
		return ast.WalkContinue, nil
	})

	out := spaceRun.ReplaceAllString(sb.String(), " ")
	return strings.TrimSpace(out)
}

// endSentence terminates a block so adjacent blocks are not read as one sentence.
func endSentence(sb *strings.Builder) {
	s := strings.TrimRightFunc(sb.String(), unicode.IsSpace)
	if s == "" {
		return
	}
	sb.Reset()
	sb.WriteString(s)
	if !strings.ContainsRune(".!?:;", rune(s[len(s)-1])) {
		sb.WriteByte('.')
	}
	sb.WriteByte(' ')
}

// SentenceBuffer groups streamed text deltas into whole sentences so the voice
// never speaks half a word.
type SentenceBuffer struct {
	buf strings.Builder
}

// Push appends delta and returns the complete sentences now available, if any.
func (b *SentenceBuffer) Push(delta string) string {
	b.buf.WriteString(delta)
	s := b.buf.String()

	cut := -1
	for i := 0; i < len(s)-1; i++ {
		if strings.ContainsRune(".!?\n", rune(s[i])) && unicode.IsSpace(rune(s[i+1])) {
			cut = i + 1
		}
	}
	if cut < 0 {
		return ""
	}

	b.buf.Reset()
	b.buf.WriteString(s[cut:])
	return strings.TrimSpace(s[:cut])
}

// Flush returns whatever text remains buffered.
func (b *SentenceBuffer) Flush() string {
	s := strings.TrimSpace(b.buf.String())
	b.buf.Reset()
	return s
}
