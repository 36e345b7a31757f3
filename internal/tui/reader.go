package tui

import (
	"strings"
	"unicode"

	"github.com/mmcdole/lector/internal/domain"
	"github.com/mmcdole/lector/internal/highlight"
	"github.com/mmcdole/lector/internal/tui/styles"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"
)

// noMark tags text that belongs to no mark
const noMark = -1

// segment is a run of text on one line, tagged with its mark
type segment struct {
	text string
	mark int
}

// readerLayout is the document wrapped to a width. markLines holds the
// first and last line of each mark.
type readerLayout struct {
	lines     [][]segment
	markLines [][2]int
}

// layoutMarks wraps the marks' text to width, keeping mark boundaries
func layoutMarks(marks domain.Marks, width int) readerLayout {
	width = max(width, 1)
	l := readerLayout{
		lines:     [][]segment{nil},
		markLines: make([][2]int, len(marks)),
	}
	col := 0

	for i, m := range marks {
		first := -1
		for _, tok := range tokenize(m.Text) {
			switch {
			case tok == "\n":
				l.trimTrailingSpace()
				l.lines = append(l.lines, nil)
				col = 0
			case isSpace(tok):
				// Spaces never start a line
				if col > 0 {
					l.appendText(tok, i)
					col += ansi.PrintableRuneWidth(tok)
				}
			default:
				for _, piece := range breakWord(tok, width) {
					w := ansi.PrintableRuneWidth(piece)
					if col > 0 && col+w > width {
						l.trimTrailingSpace()
						l.lines = append(l.lines, nil)
						col = 0
					}
					if first < 0 {
						first = len(l.lines) - 1
					}
					l.appendText(piece, i)
					col += w
				}
			}
		}
		last := len(l.lines) - 1
		if first < 0 {
			first = last
		}
		l.markLines[i] = [2]int{first, last}
	}
	l.trimTrailingSpace()
	return l
}

// layoutText wraps plain text that has no marks yet
func layoutText(text string, width int) readerLayout {
	width = max(width, 1)
	wrapped := wrap.String(wordwrap.String(text, width), width)
	var l readerLayout
	for _, line := range strings.Split(wrapped, "\n") {
		l.lines = append(l.lines, []segment{{text: strings.TrimRight(line, " "), mark: noMark}})
	}
	return l
}

// appendText adds text to the last line, merging with a same-mark segment
func (l *readerLayout) appendText(text string, mark int) {
	last := len(l.lines) - 1
	line := l.lines[last]
	if n := len(line); n > 0 && line[n-1].mark == mark {
		line[n-1].text += text
		return
	}
	l.lines[last] = append(line, segment{text: text, mark: mark})
}

func (l *readerLayout) trimTrailingSpace() {
	last := len(l.lines) - 1
	line := l.lines[last]
	for len(line) > 0 {
		n := len(line) - 1
		line[n].text = strings.TrimRight(line[n].text, " \t")
		if line[n].text != "" {
			break
		}
		line = line[:n]
	}
	l.lines[last] = line
}

// Height is the number of wrapped lines
func (l readerLayout) Height() int {
	return len(l.lines)
}

// MarkRect returns the line span of mark i; Bottom is exclusive
func (l readerLayout) MarkRect(i int) (highlight.Rect, bool) {
	if i < 0 || i >= len(l.markLines) {
		return highlight.Rect{}, false
	}
	span := l.markLines[i]
	return highlight.Rect{Top: float64(span[0]), Bottom: float64(span[1] + 1)}, true
}

// Render draws height lines starting at top, highlighting the active mark
func (l readerLayout) Render(top, height, active int) string {
	top = max(0, min(top, len(l.lines)))
	end := min(len(l.lines), top+height)

	var b strings.Builder
	for i := top; i < end; i++ {
		for _, seg := range l.lines[i] {
			if seg.mark == active && active != noMark {
				b.WriteString(styles.ActiveMarkStyle.Render(seg.text))
			} else {
				b.WriteString(styles.BodyStyle.Render(seg.text))
			}
		}
		if i < end-1 {
			b.WriteString("\n")
		}
	}
	// Pad so the pane keeps its height
	for i := end - top; i < height; i++ {
		b.WriteString("\n")
	}
	return b.String()
}

// breakWord hard-breaks a word wider than width into width-sized pieces
func breakWord(word string, width int) []string {
	if ansi.PrintableRuneWidth(word) <= width {
		return []string{word}
	}
	var pieces []string
	var cur strings.Builder
	col := 0
	for _, r := range word {
		w := ansi.PrintableRuneWidth(string(r))
		if col > 0 && col+w > width {
			pieces = append(pieces, cur.String())
			cur.Reset()
			col = 0
		}
		cur.WriteRune(r)
		col += w
	}
	if cur.Len() > 0 {
		pieces = append(pieces, cur.String())
	}
	return pieces
}

// tokenize splits text into words, runs of whitespace and single
// newlines. Each whitespace rune becomes one space, so runs keep their
// width the way pre-wrapped text does.
func tokenize(text string) []string {
	var tokens []string
	var cur strings.Builder
	curSpace := false

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for _, r := range text {
		switch {
		case r == '\n':
			flush()
			tokens = append(tokens, "\n")
		case r == '\r':
		case unicode.IsSpace(r):
			if !curSpace {
				flush()
				curSpace = true
			}
			cur.WriteRune(' ')
		default:
			if curSpace {
				flush()
				curSpace = false
			}
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

func isSpace(tok string) bool {
	return tok != "" && strings.TrimSpace(tok) == ""
}
