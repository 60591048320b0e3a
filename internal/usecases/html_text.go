package usecases

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	spacePattern      = regexp.MustCompile(`[ \t\r\f\v\x{00a0}]+`)
	blankLinesPattern = regexp.MustCompile(`\n{3,}`)
)

// blockEnds end a line in the text body.
var blockEnds = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Li: true, atom.Tr: true, atom.Table: true,
	atom.Ul: true, atom.Ol: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
}

// HTMLToText derives a plain-text body from an HTML document. Links keep their
// target in parentheses; whitespace is collapsed.
func HTMLToText(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))

	var (
		out     strings.Builder
		label   strings.Builder
		inLink  bool
		href    string
		skipTag atom.Atom
	)
	write := func(text string) {
		if inLink {
			label.WriteString(text)
			return
		}
		out.WriteString(text)
	}

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		tok := z.Token()

		if skipTag != 0 {
			if tt == html.EndTagToken && tok.DataAtom == skipTag {
				skipTag = 0
			}
			continue
		}

		switch tt {
		case html.TextToken:
			write(tok.Data)
		case html.StartTagToken, html.SelfClosingTagToken:
			switch tok.DataAtom {
			case atom.Script, atom.Style, atom.Head:
				if tt == html.StartTagToken {
					skipTag = tok.DataAtom
				}
			case atom.Br:
				write("\n")
			case atom.A:
				inLink, href = tt == html.StartTagToken, attr(tok, "href")
				label.Reset()
			}
		case html.EndTagToken:
			switch {
			case tok.DataAtom == atom.A && inLink:
				inLink = false
				out.WriteString(linkText(strings.TrimSpace(label.String()), strings.TrimSpace(href)))
			case blockEnds[tok.DataAtom]:
				write("\n")
			}
		}
	}
	if inLink {
		out.WriteString(label.String())
	}

	lines := strings.Split(out.String(), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spacePattern.ReplaceAllString(line, " "))
	}
	text := strings.Join(lines, "\n")
	text = blankLinesPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func attr(tok html.Token, name string) string {
	for _, a := range tok.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func linkText(label, href string) string {
	switch {
	case href == "" || href == label:
		return label
	case label == "":
		return href
	}
	return label + " (" + href + ")"
}
