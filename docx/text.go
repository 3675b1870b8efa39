package docx

import (
	"strings"

	"github.com/beevik/etree"
)

// paragraphs returns every w:p under el in document order.
func paragraphs(el *etree.Element) []*etree.Element {
	return el.FindElements(".//w:p")
}

// paragraphRuns returns the runs belonging to p, including runs nested in
// hyperlinks, fields and revision marks but not those of nested paragraphs
// such as text boxes.
func paragraphRuns(p *etree.Element) []*etree.Element {
	var runs []*etree.Element
	for _, r := range p.FindElements(".//w:r") {
		if owningParagraph(r) == p {
			runs = append(runs, r)
		}
	}
	return runs
}

func owningParagraph(el *etree.Element) *etree.Element {
	for parent := el.Parent(); parent != nil; parent = parent.Parent() {
		if parent.Space == "w" && parent.Tag == "p" {
			return parent
		}
	}
	return nil
}

// runText concatenates the w:t children of a run.
func runText(r *etree.Element) string {
	var b strings.Builder
	for _, t := range r.SelectElements("w:t") {
		b.WriteString(t.Text())
	}
	return b.String()
}

// setRunText collapses the run's w:t children into one holding s.
func setRunText(r *etree.Element, s string) {
	ts := r.SelectElements("w:t")
	var t *etree.Element
	if len(ts) == 0 {
		t = r.CreateElement("w:t")
	} else {
		t = ts[0]
		for _, extra := range ts[1:] {
			r.RemoveChild(extra)
		}
	}
	setElementText(t, s)
}

// setElementText sets the text of a w:t keeping surrounding spaces.
func setElementText(t *etree.Element, s string) {
	t.SetText(s)
	if t.SelectAttr("xml:space") == nil {
		t.CreateAttr("xml:space", "preserve")
	}
}

// paragraphText is the visible text of a paragraph with tabs and breaks.
func paragraphText(p *etree.Element) string {
	var b strings.Builder
	for _, r := range paragraphRuns(p) {
		for _, child := range r.ChildElements() {
			if child.Space != "w" {
				continue
			}
			switch child.Tag {
			case "t":
				b.WriteString(child.Text())
			case "tab":
				b.WriteByte('\t')
			case "br", "cr":
				b.WriteByte('\n')
			}
		}
	}
	return b.String()
}

// cellText is the text of a table cell, paragraphs joined with spaces.
func cellText(tc *etree.Element) string {
	var parts []string
	for _, p := range paragraphs(tc) {
		if t := strings.TrimSpace(paragraphText(p)); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// newTextParagraph builds a centred paragraph with one formatted run.
func newTextParagraph(text, font string, halfPoints string) *etree.Element {
	p := etree.NewElement("w:p")
	p.CreateElement("w:pPr").CreateElement("w:jc").CreateAttr("w:val", "center")

	r := p.CreateElement("w:r")
	rPr := r.CreateElement("w:rPr")
	fonts := rPr.CreateElement("w:rFonts")
	for _, attr := range []string{"w:ascii", "w:hAnsi", "w:cs", "w:eastAsia"} {
		fonts.CreateAttr(attr, font)
	}
	rPr.CreateElement("w:sz").CreateAttr("w:val", halfPoints)
	rPr.CreateElement("w:szCs").CreateAttr("w:val", halfPoints)

	if text != "" {
		setRunText(r, text)
	}
	return p
}
