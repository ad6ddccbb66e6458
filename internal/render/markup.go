package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"docconv/internal/domain"
)

// Markup returns the document at path as a complete styled HTML page.
func Markup(path string) (string, error) {
	body, err := Body(path)
	if err != nil {
		return "", err
	}
	return page(body), nil
}

// Body returns the document at path as an HTML body fragment. Documents that have no
// markup form (spreadsheets, legacy Word, PDF) yield ErrUnsupportedMarkup.
func Body(path string) (string, error) {
	switch kind, err := detect(path); {
	case err != nil:
		return "", err
	case kind == kindDOCX:
		return docxBody(path)
	case kind == kindHTML:
		return htmlBody(path)
	case kind == kindText:
		return textBody(path)
	case kind == kindImage:
		return imageBody(path)
	default:
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedMarkup, filepath.Ext(path))
	}
}

// PlainText returns the text of the document's markup with every tag removed and
// entities decoded.
func PlainText(path string) (string, error) {
	body, err := Body(path)
	if err != nil {
		return "", err
	}
	return StripTags(body), nil
}

type docKind int

const (
	kindUnknown docKind = iota
	kindDOCX
	kindHTML
	kindText
	kindImage
)

func detect(path string) (docKind, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".docx":
		return kindDOCX, nil
	case ".html", ".htm":
		return kindHTML, nil
	case ".txt", ".text":
		return kindText, nil
	case ".jpg", ".jpeg", ".png":
		return kindImage, nil
	case ".doc", ".pdf", ".xls", ".xlsx":
		return kindUnknown, nil
	}

	// No useful extension: sniff the content.
	f, err := os.Open(path)
	if err != nil {
		return kindUnknown, err
	}
	defer f.Close()
	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	ct := http.DetectContentType(head[:n])
	switch {
	case strings.HasPrefix(ct, "text/html"):
		return kindHTML, nil
	case strings.HasPrefix(ct, "text/plain"):
		return kindText, nil
	case ct == "image/png" || ct == "image/jpeg":
		return kindImage, nil
	case ct == "application/zip" && bytes.Contains(head[:n], []byte("word/")):
		return kindDOCX, nil
	}
	return kindUnknown, nil
}

// htmlBody returns the children of the document's <body>, rendered back to HTML.
func htmlBody(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	doc, err := html.Parse(f)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnsupportedMarkup, err)
	}
	body := findBody(doc)
	if body == nil {
		return "", nil
	}
	var buf bytes.Buffer
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

// textBody turns every line into its own escaped paragraph.
func textBody(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")

	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(line))
		b.WriteString("</p>\n")
	}
	return b.String(), nil
}

func imageBody(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	ct := http.DetectContentType(data)
	if ct != "image/png" && ct != "image/jpeg" {
		return "", fmt.Errorf("%w: image content is %s", domain.ErrUnsupportedMarkup, ct)
	}
	return fmt.Sprintf("<p><img src=\"data:%s;base64,%s\" alt=\"%s\"></p>\n",
		ct, base64.StdEncoding.EncodeToString(data), html.EscapeString(filepath.Base(path))), nil
}

// StripTags removes all markup from an HTML fragment. Entities are decoded, <br>
// becomes a line break, table cells are separated by a space, and the content of
// <style>, <script>, <head> and <title> is dropped.
func StripTags(fragment string) string {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var (
		b    strings.Builder
		skip int
	)
	for {
		switch tt := z.Next(); tt {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Br:
				if skip == 0 {
					b.WriteByte('\n')
				}
			case atom.Style, atom.Script, atom.Head, atom.Title:
				if tt == html.StartTagToken {
					skip++
				}
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Style, atom.Script, atom.Head, atom.Title:
				if skip > 0 {
					skip--
				}
			case atom.Td, atom.Th:
				if skip == 0 {
					b.WriteByte(' ')
				}
			}
		}
	}
}
