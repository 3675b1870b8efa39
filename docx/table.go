package docx

import (
	"strings"
	"unicode"

	"github.com/beevik/etree"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// BenefitsTableColumns is the number of columns filled per benefit row.
	BenefitsTableColumns = 8
	benefitsFont         = "Avenir Next LT Pro"
	benefitsFontSize     = "14" // half-points, 7pt
	minFallbackColumns   = 6
)

var benefitsHeaderKeywords = []string{"beneficio", "nb", "segurado", "nit", "acidente"}

// Fold lowercases s and strips diacritics.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// FillBenefitsTable appends one row per entry of rows to the benefits table
// of doc. The table is the first one whose header row names a benefit
// column, or else the first one with at least six columns. Only the first
// eight cells of a row are written. It reports whether a table was found.
func FillBenefitsTable(doc *Document, rows [][]string) (bool, error) {
	body, err := doc.Body()
	if err != nil {
		return false, err
	}
	tbl := findBenefitsTable(body)
	if tbl == nil {
		return false, nil
	}
	for _, values := range rows {
		appendRow(tbl, values)
	}
	return true, nil
}

func findBenefitsTable(body *etree.Element) *etree.Element {
	tables := body.FindElements(".//w:tbl")
	for _, tbl := range tables {
		if headerMatches(tbl) {
			return tbl
		}
	}
	for _, tbl := range tables {
		if columnCount(tbl) >= minFallbackColumns {
			return tbl
		}
	}
	return nil
}

func headerMatches(tbl *etree.Element) bool {
	rows := tbl.SelectElements("w:tr")
	if len(rows) == 0 {
		return false
	}
	for _, tc := range rows[0].SelectElements("w:tc") {
		words := strings.FieldsFunc(Fold(cellText(tc)), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		for _, w := range words {
			for _, kw := range benefitsHeaderKeywords {
				if w == kw || (len(kw) > 3 && strings.Contains(w, kw)) {
					return true
				}
			}
		}
	}
	return false
}

func columnCount(tbl *etree.Element) int {
	if grid := tbl.SelectElement("w:tblGrid"); grid != nil {
		if n := len(grid.SelectElements("w:gridCol")); n > 0 {
			return n
		}
	}
	rows := tbl.SelectElements("w:tr")
	if len(rows) == 0 {
		return 0
	}
	return len(rows[0].SelectElements("w:tc"))
}

// appendRow clones the last row for its cell properties and writes values
// into the first eight cells.
func appendRow(tbl *etree.Element, values []string) {
	var row *etree.Element
	rows := tbl.SelectElements("w:tr")
	if len(rows) > 0 {
		row = rows[len(rows)-1].Copy()
		if trPr := row.SelectElement("w:trPr"); trPr != nil {
			for _, h := range trPr.SelectElements("w:tblHeader") {
				trPr.RemoveChild(h)
			}
		}
	} else {
		row = etree.NewElement("w:tr")
		for i := 0; i < columnCount(tbl); i++ {
			row.CreateElement("w:tc")
		}
	}

	for i, tc := range row.SelectElements("w:tc") {
		for _, child := range tc.ChildElements() {
			if !(child.Space == "w" && child.Tag == "tcPr") {
				tc.RemoveChild(child)
			}
		}
		text := ""
		if i < BenefitsTableColumns && i < len(values) {
			text = values[i]
		}
		tc.AddChild(newTextParagraph(text, benefitsFont, benefitsFontSize))
	}
	tbl.AddChild(row)
}
