// Package docx edits WordprocessingML packages in memory: placeholder
// substitution, benefits table filling, document composition and plain
// text extraction.
package docx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/beevik/etree"

	"fapdraft-backend/apperrors"
)

const (
	contentTypesPart = "[Content_Types].xml"
	packageRelsPart  = "_rels/.rels"

	relTypeOfficeDocument = "officeDocument"
	relTypeHeader         = "header"
	relTypeFooter         = "footer"
	relTypeStyles         = "styles"
	relTypeNumbering      = "numbering"
	relTypeFootnotes      = "footnotes"
	relTypeEndnotes       = "endnotes"

	relationshipNS = "http://schemas.openxmlformats.org/package/2006/relationships"
	relTypePrefix  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/"
)

// Document is an opened DOCX package. Parts are kept as raw bytes until
// first accessed as XML; parsed parts are serialised again on save.
type Document struct {
	names []string
	parts map[string][]byte
	xml   map[string]*etree.Document
	main  string
}

// Open reads a DOCX file from disk.
func Open(filename string) (*Document, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	return Read(data)
}

// Read parses a DOCX package from memory.
func Read(data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, apperrors.TemplateIntegrity("not a DOCX package: %v", err)
	}

	d := &Document{
		parts: make(map[string][]byte, len(zr.File)),
		xml:   make(map[string]*etree.Document),
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, apperrors.TemplateIntegrity("failed to open part %s: %v", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, apperrors.TemplateIntegrity("failed to read part %s: %v", f.Name, err)
		}
		d.names = append(d.names, f.Name)
		d.parts[f.Name] = content
	}

	if err := d.locateMain(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Document) locateMain() error {
	d.main = "word/document.xml"
	if d.HasPart(packageRelsPart) {
		rels, err := d.Relationships("")
		if err != nil {
			return err
		}
		if r := rels.FirstOfType(relTypeOfficeDocument); r != nil {
			d.main = r.Resolved
		}
	}
	if !d.HasPart(d.main) {
		return apperrors.TemplateIntegrity("main document part %s missing", d.main)
	}
	if _, err := d.Body(); err != nil {
		return err
	}
	return nil
}

// MainPart is the name of the main document part, usually word/document.xml.
func (d *Document) MainPart() string { return d.main }

func (d *Document) HasPart(name string) bool {
	_, ok := d.parts[name]
	return ok
}

// PartNames lists the package parts in archive order.
func (d *Document) PartNames() []string {
	return append([]string(nil), d.names...)
}

// Part returns the raw content of a part, serialising it first when it was
// edited as XML.
func (d *Document) Part(name string) ([]byte, bool) {
	if x, ok := d.xml[name]; ok {
		data, err := x.WriteToBytes()
		if err == nil {
			return data, true
		}
	}
	data, ok := d.parts[name]
	return data, ok
}

// SetPart adds or replaces a raw part.
func (d *Document) SetPart(name string, data []byte) {
	if _, ok := d.parts[name]; !ok {
		d.names = append(d.names, name)
	}
	d.parts[name] = data
	delete(d.xml, name)
}

// SetXML adds or replaces a part with an XML tree.
func (d *Document) SetXML(name string, x *etree.Document) {
	if _, ok := d.parts[name]; !ok {
		d.names = append(d.names, name)
		d.parts[name] = nil
	}
	d.xml[name] = x
}

// XML returns the parsed tree of a part. Changes to the tree are saved.
func (d *Document) XML(name string) (*etree.Document, error) {
	if x, ok := d.xml[name]; ok {
		return x, nil
	}
	data, ok := d.parts[name]
	if !ok {
		return nil, apperrors.TemplateIntegrity("part %s missing", name)
	}
	x := etree.NewDocument()
	if err := x.ReadFromBytes(data); err != nil {
		return nil, apperrors.TemplateIntegrity("part %s is not valid XML: %v", name, err)
	}
	if x.Root() == nil {
		return nil, apperrors.TemplateIntegrity("part %s is empty", name)
	}
	d.xml[name] = x
	return x, nil
}

// Body returns the w:body element of the main part.
func (d *Document) Body() (*etree.Element, error) {
	x, err := d.XML(d.main)
	if err != nil {
		return nil, err
	}
	body := x.Root().SelectElement("w:body")
	if body == nil {
		return nil, apperrors.TemplateIntegrity("main document has no body")
	}
	return body, nil
}

// TextParts returns the parts carrying visible text: the main part, its
// headers, footers, footnotes and endnotes.
func (d *Document) TextParts() ([]string, error) {
	parts := []string{d.main}
	rels, err := d.Relationships(d.main)
	if err != nil {
		return nil, err
	}
	for _, r := range rels.Items {
		switch r.Kind() {
		case relTypeHeader, relTypeFooter, relTypeFootnotes, relTypeEndnotes:
			if !r.External && d.HasPart(r.Resolved) {
				parts = append(parts, r.Resolved)
			}
		}
	}
	return parts, nil
}

// Bytes serialises the package.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := d.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo writes the package as a zip archive, content types first.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	names := append([]string(nil), d.names...)
	sort.SliceStable(names, func(i, j int) bool {
		return names[i] == contentTypesPart && names[j] != contentTypesPart
	})

	cw := &countingWriter{w: w}
	zw := zip.NewWriter(cw)
	for _, name := range names {
		data, _ := d.Part(name)
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		if err != nil {
			return cw.n, fmt.Errorf("failed to create part %s: %w", name, err)
		}
		if _, err := fw.Write(data); err != nil {
			return cw.n, fmt.Errorf("failed to write part %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return cw.n, fmt.Errorf("failed to finish package: %w", err)
	}
	return cw.n, nil
}

// Save writes the package to filename.
func (d *Document) Save(filename string) error {
	data, err := d.Bytes()
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0o644)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// relsPartFor returns the relationships part name of a part; "" is the package.
func relsPartFor(part string) string {
	if part == "" {
		return packageRelsPart
	}
	dir, file := path.Split(part)
	return dir + "_rels/" + file + ".rels"
}

// resolveTarget turns a relationship target into a part name.
func resolveTarget(source, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Clean(path.Join(path.Dir(source), target))
}

// relativeTarget is the inverse of resolveTarget for parts under the source's directory.
func relativeTarget(source, part string) string {
	dir := path.Dir(source)
	if dir == "." || dir == "" {
		return part
	}
	if strings.HasPrefix(part, dir+"/") {
		return strings.TrimPrefix(part, dir+"/")
	}
	return "/" + part
}
