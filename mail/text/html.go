package text

import (
	_bufio "bufio"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var blockElements = map[atom.Atom]bool{
	atom.Address:    true,
	atom.Article:    true,
	atom.Blockquote: true,
	atom.Br:         true,
	atom.Dd:         true,
	atom.Div:        true,
	atom.Dl:         true,
	atom.Dt:         true,
	atom.Footer:     true,
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.H5:         true,
	atom.H6:         true,
	atom.Header:     true,
	atom.Hr:         true,
	atom.Li:         true,
	atom.Ol:         true,
	atom.P:          true,
	atom.Pre:        true,
	atom.Section:    true,
	atom.Table:      true,
	atom.Tr:         true,
	atom.Ul:         true,
}

// hidden elements whose content is never text
var hiddenElements = map[atom.Atom]bool{
	atom.Head:     true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Template: true,
}

// flattener collapses runs of whitespace into single spaces and never
// writes more than one line break in a row.
type flattener struct {
	w         *_bufio.Writer
	lineStart bool
	space     bool
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\r' || r == '\n' || r == '\f'
}

func (f *flattener) text(s string) {
	words := strings.FieldsFunc(s, isSpace)
	if s != "" && isSpace(rune(s[0])) {
		f.space = true
	}
	for i, word := range words {
		if (i > 0 || f.space) && !f.lineStart {
			f.w.WriteByte(' ')
		}
		f.w.WriteString(word)
		f.lineStart = false
		f.space = false
	}
	if s != "" && isSpace(rune(s[len(s)-1])) {
		f.space = true
	}
}

func (f *flattener) lineBreak() {
	if !f.lineStart {
		f.w.WriteByte('\n')
		f.lineStart = true
	}
	f.space = false
}

// WriteHTML writes the text content of the HTML document read from r to w.
// Block elements start new lines; scripts, styles and the document head
// are left out.
func WriteHTML(w io.Writer, r io.Reader) error {
	f := &flattener{w: _bufio.NewWriter(w), lineStart: true}
	z := html.NewTokenizer(r)
	hidden := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return err
			}
			f.lineBreak()
			return f.w.Flush()
		case html.TextToken:
			if hidden == 0 {
				f.text(string(z.Text()))
			}
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if a == atom.Body {
				// an unclosed head ends here
				hidden = 0
			}
			if hiddenElements[a] && tt != html.SelfClosingTagToken {
				if tt == html.StartTagToken {
					hidden++
				} else if hidden > 0 {
					hidden--
				}
				continue
			}
			if blockElements[a] && hidden == 0 {
				f.lineBreak()
			}
		}
	}
}
