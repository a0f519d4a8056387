// Package template fills placeholder tokens in DOCX templates.
//
// A DOCX file is a zip archive whose text lives in WordprocessingML parts. The filler rewrites
// the <w:t> text nodes of the main document, headers, footers, footnotes and endnotes; every
// other archive member is copied through untouched. Tables, nested tables included, are made of
// paragraphs, so cell text is covered by the same pass.
package template

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"
)

var (
	// ErrInvalidTemplate is returned for files that are not a DOCX archive.
	ErrInvalidTemplate = errors.New("invalid docx template")

	textNode     = regexp.MustCompile(`(<w:t(?:\s[^>]*)?>)([^<]*)(</w:t>)`)
	paragraphTag = regexp.MustCompile(`</?w:p(?:\s[^>]*)?/?>`)
	xmlEscaper   = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
)

const mainDocument = "word/document.xml"

// Filler loads the template from disk on every Fill so edits are picked up without a restart.
type Filler struct {
	path string
}

func NewFiller(templatePath string) *Filler {
	return &Filler{path: templatePath}
}

func (f *Filler) Path() string {
	return f.path
}

// Fill returns a new DOCX with every token in values replaced. The template file is only read.
func (f *Filler) Fill(ctx context.Context, values map[string]string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", f.path, err)
	}
	return FillBytes(raw, values)
}

// FillBytes applies values to an in-memory DOCX.
func FillBytes(docx []byte, values map[string]string) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(docx), int64(len(docx)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	if !hasMember(zr, mainDocument) {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidTemplate, mainDocument)
	}

	r := newReplacer(values)
	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	for _, member := range zr.File {
		if !isTextPart(member.Name) || r == nil {
			if err := zw.Copy(member); err != nil {
				return nil, fmt.Errorf("copy %s: %w", member.Name, err)
			}
			continue
		}
		if err := rewriteMember(zw, member, r); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize docx: %w", err)
	}
	return out.Bytes(), nil
}

func hasMember(zr *zip.Reader, name string) bool {
	for _, f := range zr.File {
		if f.Name == name {
			return true
		}
	}
	return false
}

func isTextPart(name string) bool {
	if name == mainDocument || name == "word/footnotes.xml" || name == "word/endnotes.xml" {
		return true
	}
	dir, file := path.Split(name)
	if dir != "word/" || !strings.HasSuffix(file, ".xml") {
		return false
	}
	return strings.HasPrefix(file, "header") || strings.HasPrefix(file, "footer")
}

func rewriteMember(zw *zip.Writer, member *zip.File, r *replacer) error {
	rc, err := member.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", member.Name, err)
	}
	content, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return fmt.Errorf("read %s: %w", member.Name, err)
	}

	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     member.Name,
		Method:   member.Method,
		Modified: member.Modified,
	})
	if err != nil {
		return fmt.Errorf("create %s: %w", member.Name, err)
	}
	if _, err := io.WriteString(w, r.rewriteXML(string(content))); err != nil {
		return fmt.Errorf("write %s: %w", member.Name, err)
	}
	return nil
}

type replacer struct {
	tokens []string
	inner  *strings.Replacer
}

// newReplacer orders tokens longest first, then lexically, so overlapping tokens resolve
// the same way on every call. Returns nil when there is nothing to replace.
func newReplacer(values map[string]string) *replacer {
	tokens := make([]string, 0, len(values))
	for k := range values {
		if k != "" {
			tokens = append(tokens, k)
		}
	}
	if len(tokens) == 0 {
		return nil
	}
	sort.Slice(tokens, func(i, j int) bool {
		if len(tokens[i]) != len(tokens[j]) {
			return len(tokens[i]) > len(tokens[j])
		}
		return tokens[i] < tokens[j]
	})
	pairs := make([]string, 0, len(tokens)*2)
	for _, k := range tokens {
		pairs = append(pairs, k, values[k])
	}
	return &replacer{tokens: tokens, inner: strings.NewReplacer(pairs...)}
}

func (r *replacer) containsToken(s string) bool {
	for _, t := range r.tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// rewriteXML processes one paragraph at a time. Text split across runs is joined, replaced
// and written into the paragraph's first text node. Paragraphs nest (text boxes hold their own
// <w:p> inside a run of the outer one), so each text node belongs to its innermost paragraph.
func (r *replacer) rewriteXML(doc string) string {
	nodes := textNode.FindAllStringSubmatchIndex(doc, -1)
	if len(nodes) == 0 {
		return doc
	}
	owners := paragraphOwners(doc, nodes)

	var order []int
	members := make(map[int][]int)
	for i, owner := range owners {
		if owner < 0 {
			continue
		}
		if _, seen := members[owner]; !seen {
			order = append(order, owner)
		}
		members[owner] = append(members[owner], i)
	}

	// rewritten maps a node index to its new text; absent nodes are copied verbatim.
	rewritten := make(map[int]string)
	for _, owner := range order {
		idx := members[owner]
		var joined strings.Builder
		for _, i := range idx {
			joined.WriteString(html.UnescapeString(doc[nodes[i][4]:nodes[i][5]]))
		}
		text := joined.String()
		if !r.containsToken(text) {
			continue
		}
		rewritten[idx[0]] = r.inner.Replace(text)
		for _, i := range idx[1:] {
			rewritten[i] = ""
		}
	}
	if len(rewritten) == 0 {
		return doc
	}

	var b strings.Builder
	b.Grow(len(doc))
	last := 0
	for i, m := range nodes {
		text, ok := rewritten[i]
		if !ok {
			continue
		}
		b.WriteString(doc[last:m[0]])
		open := doc[m[2]:m[3]]
		if text != "" {
			open = preserveSpace(open)
		}
		b.WriteString(open)
		b.WriteString(xmlEscaper.Replace(text))
		b.WriteString(doc[m[6]:m[7]])
		last = m[1]
	}
	b.WriteString(doc[last:])
	return b.String()
}

// paragraphOwners returns, per text node, the ordinal of its innermost enclosing paragraph,
// or -1 for text outside any paragraph.
func paragraphOwners(doc string, nodes [][]int) []int {
	owners := make([]int, len(nodes))
	var (
		stack []int
		next  int
		n     int
	)
	assignBefore := func(limit int) {
		for ; n < len(nodes) && nodes[n][0] < limit; n++ {
			owners[n] = -1
			if len(stack) > 0 {
				owners[n] = stack[len(stack)-1]
			}
		}
	}
	for _, t := range paragraphTag.FindAllStringIndex(doc, -1) {
		assignBefore(t[0])
		tag := doc[t[0]:t[1]]
		switch {
		case strings.HasPrefix(tag, "</"):
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case strings.HasSuffix(tag, "/>"):
		default:
			stack = append(stack, next)
			next++
		}
	}
	assignBefore(len(doc))
	return owners
}

func preserveSpace(open string) string {
	if strings.Contains(open, "xml:space=") {
		return open
	}
	return strings.TrimSuffix(open, ">") + ` xml:space="preserve">`
}
