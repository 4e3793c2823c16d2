// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// markdownParserInstance is initialized once and reused. The parser
// configuration never changes and the goldmark Parser is safe to
// share — actual parsing creates per-call state via Parse(reader).
var (
	markdownParserInstance goldmark.Markdown
	markdownParserOnce     sync.Once
)

func getMarkdownParser() goldmark.Markdown {
	markdownParserOnce.Do(func() {
		markdownParserInstance = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		)
	})
	return markdownParserInstance
}

// renderMarkdown parses a chat message body as markdown and renders it
// as styled terminal text wrapped to the given width. Soft line breaks
// become spaces so hard-wrapped source reflows; fenced code blocks are
// syntax-highlighted.
func renderMarkdown(input string, width int) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}
	source := []byte(input)
	reader := text.NewReader(source)
	document := getMarkdownParser().Parser().Parse(reader)

	// Force the ANSI256 profile: this output always goes to a terminal
	// (the bubbletea TUI), so auto-detection — which yields uncolored
	// output without a TTY — is bypassed.
	lipRenderer := lipgloss.NewRenderer(os.Stderr, termenv.WithProfile(termenv.ANSI256))
	lipRenderer.SetColorProfile(termenv.ANSI256)

	renderer := &messageRenderer{
		source:      source,
		width:       max(width, 10),
		lipRenderer: lipRenderer,
	}
	ast.Walk(document, renderer.walk)

	return strings.TrimRight(renderer.output.String(), "\n")
}

// messageRenderer walks a goldmark AST and produces styled terminal
// text for a single chat message. It accumulates inline content per
// block and word-wraps it as a unit when the block closes, which is
// why it walks the AST directly instead of using goldmark's streaming
// renderer interface.
type messageRenderer struct {
	source []byte
	width  int

	output strings.Builder
	inline strings.Builder

	// Prefix prepended to every emitted line (blockquote marker,
	// list indent).
	linePrefix string

	// Pending bullet replacing linePrefix for the next emitted line.
	pendingBullet string

	boldCount          int
	italicCount        int
	strikethroughCount int

	ordinal      int   // next ordered-list number, 0 for bullet lists
	indentWidths []int // per-list-item indent, for unwinding

	lipRenderer *lipgloss.Renderer
}

func (r *messageRenderer) newStyle() lipgloss.Style {
	return r.lipRenderer.NewStyle()
}

func (r *messageRenderer) styledText(content string) string {
	style := r.newStyle()
	if r.boldCount > 0 {
		style = style.Bold(true)
	}
	if r.italicCount > 0 {
		style = style.Italic(true)
	}
	if r.strikethroughCount > 0 {
		style = style.Strikethrough(true)
	}
	return style.Render(content)
}

// flushInline word-wraps the accumulated inline content, applies the
// line prefix, and writes it out.
func (r *messageRenderer) flushInline() {
	content := r.inline.String()
	r.inline.Reset()
	if content == "" {
		return
	}

	wrapped := ansi.Wrap(content, r.width-lipgloss.Width(r.linePrefix), " ,.;-+|")
	for i, line := range strings.Split(wrapped, "\n") {
		prefix := r.linePrefix
		if i == 0 && r.pendingBullet != "" {
			prefix = r.pendingBullet
			r.pendingBullet = ""
		}
		r.output.WriteString(prefix + line + "\n")
	}
}

func (r *messageRenderer) walk(node ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node.Kind() {

	case ast.KindParagraph, ast.KindTextBlock:
		if entering {
			r.inline.Reset()
		} else {
			r.flushInline()
		}

	case ast.KindHeading:
		if entering {
			r.inline.Reset()
		} else {
			// Chat messages rarely carry headings; bold is enough.
			content := ansi.Strip(r.inline.String())
			r.inline.Reset()
			if content != "" {
				r.inline.WriteString(r.newStyle().Bold(true).Render(content))
				r.flushInline()
			}
		}

	case ast.KindFencedCodeBlock:
		if entering {
			r.renderFencedCodeBlock(node.(*ast.FencedCodeBlock))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindCodeBlock:
		if entering {
			r.renderCodeLines(r.collectLines(node), "")
			return ast.WalkSkipChildren, nil
		}

	case ast.KindBlockquote:
		if entering {
			r.linePrefix += "│ "
		} else {
			r.linePrefix = strings.TrimSuffix(r.linePrefix, "│ ")
		}

	case ast.KindList:
		if entering {
			list := node.(*ast.List)
			if list.IsOrdered() {
				r.ordinal = list.Start
			} else {
				r.ordinal = 0
			}
		}

	case ast.KindListItem:
		if entering {
			bullet := "- "
			if r.ordinal > 0 {
				bullet = fmt.Sprintf("%d. ", r.ordinal)
				r.ordinal++
			}
			r.pendingBullet = r.linePrefix + bullet
			r.linePrefix += strings.Repeat(" ", len(bullet))
			r.indentWidths = append(r.indentWidths, len(bullet))
		} else {
			last := len(r.indentWidths) - 1
			r.linePrefix = r.linePrefix[:len(r.linePrefix)-r.indentWidths[last]]
			r.indentWidths = r.indentWidths[:last]
			r.pendingBullet = ""
		}

	case ast.KindText:
		if entering {
			textNode := node.(*ast.Text)
			r.inline.WriteString(r.styledText(string(textNode.Segment.Value(r.source))))
			if textNode.SoftLineBreak() {
				// Soft breaks become spaces so hard-wrapped source
				// reflows at the terminal width.
				r.inline.WriteString(" ")
			}
			if textNode.HardLineBreak() {
				r.inline.WriteString("\n")
			}
		}

	case ast.KindString:
		if entering {
			r.inline.WriteString(r.styledText(string(node.(*ast.String).Value)))
		}

	case ast.KindEmphasis:
		emphasis := node.(*ast.Emphasis)
		delta := 1
		if !entering {
			delta = -1
		}
		if emphasis.Level >= 2 {
			r.boldCount += delta
		} else {
			r.italicCount += delta
		}

	case extast.KindStrikethrough:
		if entering {
			r.strikethroughCount++
		} else {
			r.strikethroughCount--
		}

	case ast.KindCodeSpan:
		if entering {
			var code strings.Builder
			for child := node.FirstChild(); child != nil; child = child.NextSibling() {
				if textNode, ok := child.(*ast.Text); ok {
					code.Write(textNode.Segment.Value(r.source))
				}
			}
			r.inline.WriteString(r.newStyle().Faint(true).Render(code.String()))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindLink:
		if entering {
			link := node.(*ast.Link)
			if url := string(link.Destination); url != "" {
				// Children render the display text; the URL follows
				// when the node closes, so stash it on the way in.
				defer r.inline.WriteString(" " + r.newStyle().Faint(true).Render("("+url+")"))
			}
			for child := node.FirstChild(); child != nil; child = child.NextSibling() {
				ast.Walk(child, r.walk)
			}
			return ast.WalkSkipChildren, nil
		}

	case ast.KindAutoLink:
		if entering {
			url := string(node.(*ast.AutoLink).URL(r.source))
			r.inline.WriteString(r.newStyle().Faint(true).Render(url))
		}
	}

	return ast.WalkContinue, nil
}

func (r *messageRenderer) renderFencedCodeBlock(node *ast.FencedCodeBlock) {
	r.renderCodeLines(r.collectLines(node), string(node.Language(r.source)))
}

func (r *messageRenderer) collectLines(node ast.Node) string {
	var code strings.Builder
	lines := node.Lines()
	for index := 0; index < lines.Len(); index++ {
		segment := lines.At(index)
		code.Write(segment.Value(r.source))
	}
	return code.String()
}

// renderCodeLines emits a code block, syntax-highlighted through
// Chroma when the fence names a language it knows. Highlight failure
// falls back to faint plain text.
func (r *messageRenderer) renderCodeLines(code, language string) {
	highlighted := ""
	if language != "" {
		var buffer strings.Builder
		if err := quick.Highlight(&buffer, code, language, "terminal256", "monokai"); err == nil {
			highlighted = buffer.String()
		}
	}
	if highlighted == "" {
		highlighted = r.newStyle().Faint(true).Render(strings.TrimRight(code, "\n"))
	}
	for _, line := range strings.Split(strings.TrimRight(highlighted, "\n"), "\n") {
		r.output.WriteString(r.linePrefix + line + "\n")
	}
}
