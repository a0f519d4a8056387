package testutil

import (
	"archive/zip"
	"bytes"
	"html"
	"io"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const contentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
	`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`</Types>`

// Paragraph renders one <w:p> whose runs hold the given texts.
func Paragraph(runs ...string) string {
	var b strings.Builder
	b.WriteString("<w:p>")
	for _, r := range runs {
		b.WriteString("<w:r><w:rPr><w:b/></w:rPr><w:t>")
		b.WriteString(r)
		b.WriteString("</w:t></w:r>")
	}
	b.WriteString("</w:p>")
	return b.String()
}

// Table renders a one-row table whose cells contain the given paragraphs.
func Table(cells ...string) string {
	var b strings.Builder
	b.WriteString("<w:tbl><w:tr>")
	for _, c := range cells {
		b.WriteString("<w:tc>" + c + "</w:tc>")
	}
	b.WriteString("</w:tr></w:tbl>")
	return b.String()
}

// WordPart wraps body XML in a document (or header/footer) root element.
func WordPart(root, body string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:` + root + ` xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		body + `</w:` + root + `>`
}

// NewDocx builds a minimal DOCX archive. parts maps member names to contents; the
// content types member is added automatically.
func NewDocx(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	names := []string{"[Content_Types].xml"}
	for name := range parts {
		names = append(names, name)
	}
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		content := contentTypes
		if name != "[Content_Types].xml" {
			content = parts[name]
		}
		_, err = io.WriteString(w, content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

var (
	paragraphRe = regexp.MustCompile(`(?s)<w:p>.*?</w:p>`)
	textRe      = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)
)

// DocxPart returns the raw contents of one archive member.
func DocxPart(t *testing.T, docx []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(docx), int64(len(docx)))
	require.NoError(t, err)
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		return string(data)
	}
	t.Fatalf("docx member %s not found", name)
	return ""
}

// DocxParagraphs returns the visible text of each paragraph of a member, in order.
func DocxParagraphs(t *testing.T, docx []byte, name string) []string {
	t.Helper()
	var out []string
	for _, p := range paragraphRe.FindAllString(DocxPart(t, docx, name), -1) {
		var b strings.Builder
		for _, m := range textRe.FindAllStringSubmatch(p, -1) {
			b.WriteString(html.UnescapeString(m[1]))
		}
		out = append(out, b.String())
	}
	return out
}
