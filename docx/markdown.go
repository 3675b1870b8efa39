package docx

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

var headingStyle = regexp.MustCompile(`(?i)^(heading|titulo|ttulo|título)\s*([1-6])$`)

// Markdown renders the body as markdown: headings from heading styles,
// paragraphs as text and tables as pipe tables.
func (d *Document) Markdown() (string, error) {
	body, err := d.Body()
	if err != nil {
		return "", err
	}
	var blocks []string
	for _, el := range body.ChildElements() {
		if el.Space != "w" {
			continue
		}
		switch el.Tag {
		case "p":
			if text := strings.TrimSpace(paragraphText(el)); text != "" {
				blocks = append(blocks, headingPrefix(el)+text)
			}
		case "tbl":
			if table := tableMarkdown(el); table != "" {
				blocks = append(blocks, table)
			}
		case "sdt":
			if content := el.SelectElement("w:sdtContent"); content != nil {
				for _, p := range paragraphs(content) {
					if text := strings.TrimSpace(paragraphText(p)); text != "" {
						blocks = append(blocks, text)
					}
				}
			}
		}
	}
	return strings.Join(blocks, "\n\n"), nil
}

// Text is the plain text of every paragraph of the body, one per line.
func (d *Document) Text() (string, error) {
	body, err := d.Body()
	if err != nil {
		return "", err
	}
	var lines []string
	for _, p := range paragraphs(body) {
		lines = append(lines, paragraphText(p))
	}
	return strings.Join(lines, "\n"), nil
}

func headingPrefix(p *etree.Element) string {
	style := p.FindElement("./w:pPr/w:pStyle")
	if style == nil {
		return ""
	}
	m := headingStyle.FindStringSubmatch(style.SelectAttrValue("w:val", ""))
	if m == nil {
		return ""
	}
	level, _ := strconv.Atoi(m[2])
	return strings.Repeat("#", level) + " "
}

func tableMarkdown(tbl *etree.Element) string {
	var lines []string
	for i, tr := range tbl.SelectElements("w:tr") {
		var cells []string
		for _, tc := range tr.SelectElements("w:tc") {
			cells = append(cells, strings.ReplaceAll(cellText(tc), "|", "/"))
		}
		if len(cells) == 0 {
			continue
		}
		lines = append(lines, "| "+strings.Join(cells, " | ")+" |")
		if i == 0 {
			lines = append(lines, "|"+strings.Repeat(" --- |", len(cells)))
		}
	}
	return strings.Join(lines, "\n")
}
