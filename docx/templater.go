package docx

import (
	"regexp"
	"sort"
	"strings"

	"github.com/beevik/etree"

	"fapdraft-backend/apperrors"
)

var placeholderPattern = regexp.MustCompile(`\{\{[A-Za-z0-9_]+\}\}`)

// ValidateValues rejects values that would leave placeholders behind after
// substitution. A value equal to its own key is a sentinel kept as is.
func ValidateValues(values map[string]string) error {
	for key, value := range values {
		if value == key {
			continue
		}
		if tok := placeholderPattern.FindString(value); tok != "" {
			return apperrors.TemplateIntegrity("value of %s contains placeholder %s", key, tok)
		}
	}
	return nil
}

// ApplyReplacements substitutes every key of values in the body, headers,
// footers and notes of doc and returns the number of substitutions.
//
// A placeholder split across several runs is rewritten into the first run
// it touches; the following runs keep only their text outside the
// placeholder. The placeholder text therefore takes the formatting of its
// first run. Tabs and line breaks stay in place and a placeholder never
// matches across one. Applying the same values twice changes nothing the
// second time.
func ApplyReplacements(doc *Document, values map[string]string) (int, error) {
	if err := ValidateValues(values); err != nil {
		return 0, err
	}

	keys := make([]string, 0, len(values))
	for k, v := range values {
		if k != "" && k != v {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts, err := doc.TextParts()
	if err != nil {
		return 0, err
	}

	total := 0
	for _, part := range parts {
		x, err := doc.XML(part)
		if err != nil {
			return total, err
		}
		for _, p := range paragraphs(x.Root()) {
			runs := paragraphRuns(p)
			if len(runs) == 0 {
				continue
			}
			for _, key := range keys {
				total += replaceInRuns(runs, key, values[key])
			}
		}
	}
	return total, nil
}

// textSlot is one w:t of a paragraph, or a tab or break between them
// (t == nil).
type textSlot struct {
	t    *etree.Element
	text string
}

// slotBoundary never occurs in a placeholder, so no match spans a break.
const slotBoundary = "\x00"

func textSlots(runs []*etree.Element) []textSlot {
	var slots []textSlot
	for _, r := range runs {
		for _, child := range r.ChildElements() {
			if child.Space != "w" {
				continue
			}
			switch child.Tag {
			case "t":
				slots = append(slots, textSlot{t: child, text: child.Text()})
			case "tab", "br", "cr":
				slots = append(slots, textSlot{text: slotBoundary})
			}
		}
	}
	return slots
}

// replaceInRuns replaces key in one paragraph's runs. Only the w:t elements
// a match spans are rewritten; tabs and breaks stay where they are.
func replaceInRuns(runs []*etree.Element, key, value string) int {
	slots := textSlots(runs)
	count := 0

	for i := range slots {
		if slots[i].t == nil {
			continue
		}
		if n := strings.Count(slots[i].text, key); n > 0 {
			slots[i].text = strings.ReplaceAll(slots[i].text, key, value)
			setElementText(slots[i].t, slots[i].text)
			count += n
		}
	}

	texts := make([]string, len(slots))
	for i := range slots {
		texts[i] = slots[i].text
	}

	from := 0
	for {
		full := strings.Join(texts, "")
		if from > len(full) {
			break
		}
		rel := strings.Index(full[from:], key)
		if rel < 0 {
			break
		}
		idx := from + rel
		end := idx + len(key)

		first, last := -1, -1
		offset := 0
		for i, t := range texts {
			next := offset + len(t)
			if first < 0 && idx < next {
				first = i
			}
			if end <= next {
				last = i
				break
			}
			offset = next
		}
		if first < 0 || last < 0 {
			break
		}

		firstStart := runOffset(texts, first)
		lastStart := runOffset(texts, last)

		head := texts[first][:idx-firstStart]
		tail := texts[last][end-lastStart:]
		for i := first; i <= last; i++ {
			texts[i] = ""
		}
		if first == last {
			texts[first] = head + value + tail
		} else {
			texts[first] = head + value
			texts[last] = tail
		}

		for i := first; i <= last; i++ {
			if slots[i].t != nil {
				setElementText(slots[i].t, texts[i])
			}
		}
		from = idx + len(value)
		count++
	}
	return count
}

func runOffset(texts []string, i int) int {
	offset := 0
	for _, t := range texts[:i] {
		offset += len(t)
	}
	return offset
}
