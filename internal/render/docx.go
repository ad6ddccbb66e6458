package render

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"strings"

	"docconv/internal/domain"
)

const wordNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// docxBody converts the main part of a DOCX package into an HTML body fragment with
// one block element per line.
func docxBody(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("%w: not a docx package: %v", domain.ErrUnsupportedMarkup, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrUnsupportedMarkup, err)
		}
		defer rc.Close()
		return wordToHTML(rc)
	}
	return "", fmt.Errorf("%w: word/document.xml missing", domain.ErrUnsupportedMarkup)
}

type runStyle struct {
	bold, italic, underline, strike bool
}

func (s runStyle) wrap(text string) string {
	if s.strike {
		text = "<s>" + text + "</s>"
	}
	if s.underline {
		text = "<u>" + text + "</u>"
	}
	if s.italic {
		text = "<em>" + text + "</em>"
	}
	if s.bold {
		text = "<strong>" + text + "</strong>"
	}
	return text
}

// wordWriter turns the WordprocessingML token stream into HTML.
type wordWriter struct {
	// blocks holds one builder per open table, row and cell; blocks[0] is the body.
	blocks []*strings.Builder

	inPara  bool
	para    strings.Builder
	paraTag string
	isList  bool
	inList  bool

	inRun  bool
	inRPr  bool
	inText bool
	run    strings.Builder
	style  runStyle
}

func wordToHTML(r io.Reader) (string, error) {
	w := &wordWriter{blocks: []*strings.Builder{{}}}
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrUnsupportedMarkup, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space == wordNS {
				w.start(t)
			}
		case xml.EndElement:
			if t.Name.Space == wordNS {
				w.end(t.Name.Local)
			}
		case xml.CharData:
			if w.inText {
				w.run.WriteString(html.EscapeString(string(t)))
			}
		}
	}
	w.closeList()
	return w.blocks[0].String(), nil
}

func (w *wordWriter) top() *strings.Builder { return w.blocks[len(w.blocks)-1] }

func (w *wordWriter) inTable() bool { return len(w.blocks) > 1 }

func (w *wordWriter) push() { w.blocks = append(w.blocks, &strings.Builder{}) }

func (w *wordWriter) pop() string {
	if !w.inTable() {
		return ""
	}
	b := w.top()
	w.blocks = w.blocks[:len(w.blocks)-1]
	return b.String()
}

func (w *wordWriter) closeList() {
	if w.inList {
		w.blocks[0].WriteString("</ul>\n")
		w.inList = false
	}
}

func (w *wordWriter) start(t xml.StartElement) {
	switch t.Name.Local {
	case "tbl":
		if !w.inTable() {
			w.closeList()
		}
		w.push()
	case "tr", "tc":
		w.push()
	case "p":
		w.inPara = true
		w.para.Reset()
		w.paraTag = "p"
		w.isList = false
	case "pStyle":
		if w.inPara {
			w.paraTag = tagForStyle(attr(t, "val"))
		}
	case "numPr":
		if w.inPara {
			w.isList = true
		}
	case "r":
		w.inRun = true
		w.run.Reset()
		w.style = runStyle{}
	case "rPr":
		w.inRPr = w.inRun
	case "b", "i", "u", "strike":
		if w.inRPr {
			w.toggle(t)
		}
	case "t":
		w.inText = w.inRun
	case "tab":
		if w.inRun {
			w.run.WriteString("\t")
		}
	case "br", "cr":
		if w.inRun {
			w.run.WriteString("<br>")
		}
	}
}

func (w *wordWriter) toggle(t xml.StartElement) {
	on := true
	switch v := attr(t, "val"); v {
	case "0", "false", "none":
		on = false
	}
	switch t.Name.Local {
	case "b":
		w.style.bold = on
	case "i":
		w.style.italic = on
	case "u":
		w.style.underline = on
	case "strike":
		w.style.strike = on
	}
}

func (w *wordWriter) end(local string) {
	switch local {
	case "t":
		w.inText = false
	case "rPr":
		w.inRPr = false
	case "r":
		if w.inPara && w.run.Len() > 0 {
			w.para.WriteString(w.style.wrap(w.run.String()))
		}
		w.inRun = false
	case "p":
		w.endParagraph()
	case "tc":
		cell := w.pop()
		w.top().WriteString("<td>" + cell + "</td>")
	case "tr":
		row := w.pop()
		w.top().WriteString("<tr>" + row + "</tr>\n")
	case "tbl":
		rows := w.pop()
		w.top().WriteString("<table>\n" + rows + "</table>\n")
	}
}

func (w *wordWriter) endParagraph() {
	w.inPara = false
	content := w.para.String()

	if w.inTable() {
		b := w.top()
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString("<p>" + content + "</p>")
		return
	}

	body := w.blocks[0]
	if w.isList && w.paraTag == "p" {
		if !w.inList {
			body.WriteString("<ul>\n")
			w.inList = true
		}
		body.WriteString("<li>" + content + "</li>\n")
		return
	}
	w.closeList()
	body.WriteString("<" + w.paraTag + ">" + content + "</" + w.paraTag + ">\n")
}

func tagForStyle(style string) string {
	s := strings.ToLower(style)
	switch {
	case s == "title":
		return "h1"
	case s == "subtitle":
		return "h2"
	case strings.HasPrefix(s, "heading") && len(s) == len("heading")+1:
		if n := s[len(s)-1]; n >= '1' && n <= '6' {
			return "h" + string(n)
		}
	case s == "quote" || s == "intensequote":
		return "blockquote"
	}
	return "p"
}

func attr(t xml.StartElement, local string) string {
	for _, a := range t.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
