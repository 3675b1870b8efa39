// Package converter turns source files (PDF, DOCX, DOC, HTML, TXT, MD) into
// markdown-flavoured plain text for chunking.
package converter

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"

	"fapdraft-backend/apperrors"
	"fapdraft-backend/docx"
)

var supported = map[string]bool{
	".pdf": true, ".docx": true, ".doc": true, ".txt": true, ".md": true, ".html": true, ".htm": true,
}

type Converter struct {
	logger  *zap.Logger
	soffice string
}

type Option func(*Converter)

func WithLogger(l *zap.Logger) Option {
	return func(c *Converter) {
		c.logger = l
	}
}

// WithSoffice sets the LibreOffice binary used for legacy .doc files.
func WithSoffice(path string) Option {
	return func(c *Converter) {
		c.soffice = path
	}
}

func New(opts ...Option) *Converter {
	c := &Converter{logger: zap.NewNop(), soffice: "soffice"}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Supports reports whether filename has a convertible extension.
func Supports(filename string) bool {
	return supported[strings.ToLower(filepath.Ext(filename))]
}

// Convert extracts the text of the file at path. Unsupported formats and
// unreadable files fail with apperrors.ErrConversion. A readable file
// without text yields "".
func (c *Converter) Convert(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !supported[ext] {
		return "", apperrors.Conversion(nil, "unsupported format %q", ext)
	}
	if _, err := os.Stat(path); err != nil {
		return "", apperrors.Conversion(err, "cannot read %s", filepath.Base(path))
	}

	var (
		text string
		err  error
	)
	switch ext {
	case ".pdf":
		text, err = c.pdf(path)
	case ".docx":
		text, err = c.docx(path)
	case ".doc":
		text, err = c.doc(ctx, path)
	case ".html", ".htm":
		text, err = c.html(path)
	default:
		var data []byte
		data, err = os.ReadFile(path)
		text = string(data)
	}
	if err != nil {
		return "", apperrors.Conversion(err, "converting %s", filepath.Base(path))
	}

	text = Normalize(text)
	c.logger.Debug("document converted",
		zap.String("file", filepath.Base(path)),
		zap.String("format", ext),
		zap.Int("text_length", len(text)),
	)
	return text, nil
}

func (c *Converter) pdf(path string) (string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return "", err
	}
	defer doc.Close()

	pages := make([]string, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		pageText, err := doc.Text(i)
		if err != nil {
			c.logger.Warn("failed to extract text from page",
				zap.Int("page", i+1),
				zap.String("file", filepath.Base(path)),
				zap.Error(err),
			)
			continue
		}
		if strings.TrimSpace(pageText) != "" {
			pages = append(pages, pageText)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

func (c *Converter) docx(path string) (string, error) {
	doc, err := docx.Open(path)
	if err != nil {
		return "", err
	}
	return doc.Markdown()
}

// doc converts a legacy Word file to DOCX with headless LibreOffice first.
func (c *Converter) doc(ctx context.Context, path string) (string, error) {
	bin, err := exec.LookPath(c.soffice)
	if err != nil {
		return "", apperrors.Conversion(err, "legacy .doc needs LibreOffice")
	}
	outDir, err := os.MkdirTemp("", "fapdraft-doc-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(outDir)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "--headless", "--convert-to", "docx", "--outdir", outDir, path)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", apperrors.Conversion(err, "soffice: %s", strings.TrimSpace(stderr.String()))
	}

	converted := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))+".docx")
	return c.docx(converted)
}

func (c *Converter) html(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", err
	}
	doc.Find("script, style, nav, footer, aside, noscript").Remove()

	var blocks []string
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, table").Each(func(_ int, s *goquery.Selection) {
		name := goquery.NodeName(s)
		switch {
		case name == "table":
			if table := htmlTable(s); table != "" {
				blocks = append(blocks, table)
			}
		case s.ParentsFiltered("table").Length() > 0:
			// rendered with its table
		case strings.HasPrefix(name, "h") && len(name) == 2:
			if text := collapse(s.Text()); text != "" {
				blocks = append(blocks, strings.Repeat("#", int(name[1]-'0'))+" "+text)
			}
		case name == "li":
			if text := collapse(s.Text()); text != "" {
				blocks = append(blocks, "- "+text)
			}
		default:
			if s.ParentsFiltered("li").Length() > 0 {
				return
			}
			if text := collapse(s.Text()); text != "" {
				blocks = append(blocks, text)
			}
		}
	})
	return strings.Join(blocks, "\n\n"), nil
}

func htmlTable(table *goquery.Selection) string {
	var lines []string
	table.Find("tr").Each(func(i int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, strings.ReplaceAll(collapse(cell.Text()), "|", "/"))
		})
		if len(cells) == 0 {
			return
		}
		lines = append(lines, "| "+strings.Join(cells, " | ")+" |")
		if len(lines) == 1 {
			lines = append(lines, "|"+strings.Repeat(" --- |", len(cells)))
		}
	})
	return strings.Join(lines, "\n")
}

var (
	blankLines = regexp.MustCompile(`\n{3,}`)
	spaceRun   = regexp.MustCompile(`\s+`)
)

// Normalize unifies line endings, trims trailing spaces and collapses runs
// of blank lines.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\u00a0")
	}
	text = strings.Join(lines, "\n")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func collapse(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}
