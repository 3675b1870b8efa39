package docx

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"fapdraft-backend/apperrors"
)

// relationship kinds that are merged part by part instead of copied
var mergedKinds = map[string]bool{
	"styles":            true,
	"numbering":         true,
	"footnotes":         true,
	"endnotes":          true,
	"settings":          true,
	"fontTable":         true,
	"webSettings":       true,
	"theme":             true,
	"stylesWithEffects": true,
	"customXml":         true,
	"comments":          true,
	"glossaryDocument":  true,
}

// Compose returns base followed by body in a new document. The base keeps
// its section properties, headers and footers; the body starts in a new
// section right after the base content. Images, headers, footers and
// hyperlinks of the body are carried over with fresh relationship ids;
// styles, numbering and notes are merged.
func Compose(base, body *Document) (*Document, error) {
	out, err := base.clone()
	if err != nil {
		return nil, err
	}
	c := &composer{dst: out, src: body, renamed: map[string]string{}}
	if err := c.run(); err != nil {
		return nil, err
	}
	return out, nil
}

type composer struct {
	dst, src *Document
	dstRels  *Relationships
	ct       *contentTypes
	srcCT    *contentTypes
	// renamed maps source part names to their name in dst.
	renamed map[string]string
}

func (c *composer) run() error {
	dstBody, err := c.dst.Body()
	if err != nil {
		return err
	}
	srcBody, err := c.src.Body()
	if err != nil {
		return err
	}
	if c.ct, err = c.dst.contentTypes(); err != nil {
		return err
	}
	if c.srcCT, err = c.src.contentTypes(); err != nil {
		return err
	}
	if c.dstRels, err = c.dst.Relationships(c.dst.main); err != nil {
		return err
	}

	content := make([]*etree.Element, 0, len(srcBody.ChildElements()))
	for _, el := range srcBody.ChildElements() {
		content = append(content, el.Copy())
	}
	holder := etree.NewElement("w:body")
	for _, el := range content {
		holder.AddChild(el)
	}

	if err := c.copyRelationships(holder); err != nil {
		return err
	}
	if err := c.mergeStyles(); err != nil {
		return err
	}
	if err := c.mergeNumbering(holder); err != nil {
		return err
	}
	for _, kind := range []string{relTypeFootnotes, relTypeEndnotes} {
		if err := c.mergeNotes(kind, holder); err != nil {
			return err
		}
	}
	c.renumberDrawings(dstBody, holder)
	c.mergeNamespaces()

	c.closeBaseSection(dstBody)
	for _, el := range holder.ChildElements() {
		holder.RemoveChild(el)
		dstBody.AddChild(el)
	}
	c.dstRels.save(c.dst)
	return nil
}

// closeBaseSection moves the final section properties of the base into its
// last paragraph so the base content keeps its own section, and drops
// trailing page breaks that would leave an empty page.
func (c *composer) closeBaseSection(body *etree.Element) {
	sectPr := body.SelectElement("w:sectPr")
	if sectPr == nil {
		return
	}
	body.RemoveChild(sectPr)

	var last *etree.Element
	children := body.ChildElements()
	if n := len(children); n > 0 && children[n-1].Space == "w" && children[n-1].Tag == "p" {
		last = children[n-1]
	} else {
		last = body.CreateElement("w:p")
	}

	for _, r := range paragraphRuns(last) {
		for _, br := range r.SelectElements("w:br") {
			if br.SelectAttrValue("w:type", "") == "page" {
				r.RemoveChild(br)
			}
		}
	}
	pPr := last.SelectElement("w:pPr")
	if pPr == nil {
		pPr = etree.NewElement("w:pPr")
		last.InsertChildAt(0, pPr)
	}
	if old := pPr.SelectElement("w:sectPr"); old != nil {
		pPr.RemoveChild(old)
	}
	pPr.AddChild(sectPr)
}

// copyRelationships copies the parts referenced by the body's main part and
// rewrites the r:* attributes of content to the new ids.
func (c *composer) copyRelationships(content *etree.Element) error {
	srcRels, err := c.src.Relationships(c.src.main)
	if err != nil {
		return err
	}
	ids := map[string]string{}
	for _, r := range srcRels.Items {
		if mergedKinds[r.Kind()] {
			continue
		}
		if r.External {
			ids[r.ID] = c.dstRels.Add(r.Type, r.Target, true).ID
			continue
		}
		part, err := c.copyPart(r.Resolved)
		if err != nil {
			return err
		}
		if part == "" {
			continue
		}
		ids[r.ID] = c.dstRels.Add(r.Type, part, false).ID
	}
	rewriteRelIDs(content, ids)
	return nil
}

// copyPart copies a source part and its own relationships into dst under a
// free name and returns that name, "" when the source part does not exist.
func (c *composer) copyPart(srcPart string) (string, error) {
	if name, ok := c.renamed[srcPart]; ok {
		return name, nil
	}
	data, ok := c.src.Part(srcPart)
	if !ok {
		return "", nil
	}
	name := c.freeName(srcPart)
	c.renamed[srcPart] = name
	c.dst.SetPart(name, data)
	c.ct.register(name, c.srcCT.forPart(srcPart))

	if !c.src.HasPart(relsPartFor(srcPart)) {
		return name, nil
	}
	srcRels, err := c.src.Relationships(srcPart)
	if err != nil {
		return "", err
	}
	x, err := c.dst.XML(name)
	if err != nil {
		// binary part with relationships: nothing to rewrite
		return name, nil
	}
	partRels, err := c.dst.Relationships(name)
	if err != nil {
		return "", err
	}
	ids := map[string]string{}
	for _, r := range srcRels.Items {
		if r.External {
			ids[r.ID] = partRels.Add(r.Type, r.Target, true).ID
			continue
		}
		child, err := c.copyPart(r.Resolved)
		if err != nil {
			return "", err
		}
		if child != "" {
			ids[r.ID] = partRels.Add(r.Type, child, false).ID
		}
	}
	rewriteRelIDs(x.Root(), ids)
	partRels.save(c.dst)
	return name, nil
}

func (c *composer) freeName(srcPart string) string {
	if !c.dst.HasPart(srcPart) {
		return srcPart
	}
	dir, file := path.Split(srcPart)
	ext := path.Ext(file)
	stem := strings.TrimSuffix(file, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s%s_body%d%s", dir, stem, i, ext)
		if !c.dst.HasPart(candidate) {
			return candidate
		}
	}
}

// rewriteRelIDs updates every attribute in the r namespace.
func rewriteRelIDs(root *etree.Element, ids map[string]string) {
	var walk func(el *etree.Element)
	walk = func(el *etree.Element) {
		for i := range el.Attr {
			a := &el.Attr[i]
			if a.Space != "r" {
				continue
			}
			if id, ok := ids[a.Value]; ok {
				a.Value = id
			}
		}
		for _, child := range el.ChildElements() {
			walk(child)
		}
	}
	walk(root)
}

// mergeStyles appends the body styles whose ids the base does not define.
func (c *composer) mergeStyles() error {
	srcPart, dstPart := c.partOf(c.src, relTypeStyles), c.partOf(c.dst, relTypeStyles)
	if srcPart == "" {
		return nil
	}
	if dstPart == "" {
		_, err := c.adoptPart(relTypeStyles, srcPart)
		return err
	}
	srcX, err := c.src.XML(srcPart)
	if err != nil {
		return err
	}
	dstX, err := c.dst.XML(dstPart)
	if err != nil {
		return err
	}
	known := map[string]bool{}
	for _, s := range dstX.Root().SelectElements("w:style") {
		known[s.SelectAttrValue("w:styleId", "")] = true
	}
	for _, s := range srcX.Root().SelectElements("w:style") {
		id := s.SelectAttrValue("w:styleId", "")
		if id == "" || known[id] {
			continue
		}
		known[id] = true
		dstX.Root().AddChild(s.Copy())
	}
	return nil
}

// mergeNumbering appends the body numbering definitions with shifted ids
// and points the body paragraphs at them.
func (c *composer) mergeNumbering(content *etree.Element) error {
	srcPart, dstPart := c.partOf(c.src, relTypeNumbering), c.partOf(c.dst, relTypeNumbering)
	if srcPart == "" {
		return nil
	}
	if dstPart == "" {
		_, err := c.adoptPart(relTypeNumbering, srcPart)
		return err
	}
	srcX, err := c.src.XML(srcPart)
	if err != nil {
		return err
	}
	dstX, err := c.dst.XML(dstPart)
	if err != nil {
		return err
	}
	dstRoot := dstX.Root()

	abstractOffset := maxIntAttr(dstRoot.SelectElements("w:abstractNum"), "w:abstractNumId") + 1
	numOffset := maxIntAttr(dstRoot.SelectElements("w:num"), "w:numId")
	if numOffset < 0 {
		numOffset = 0
	}

	insertAt := len(dstRoot.Child)
	if nums := dstRoot.SelectElements("w:num"); len(nums) > 0 {
		insertAt = nums[0].Index()
	}
	for _, a := range srcX.Root().SelectElements("w:abstractNum") {
		cp := a.Copy()
		shiftIntAttr(cp, "w:abstractNumId", abstractOffset)
		for _, nsid := range cp.SelectElements("w:nsid") {
			cp.RemoveChild(nsid)
		}
		dstRoot.InsertChildAt(insertAt, cp)
		insertAt++
	}
	for _, n := range srcX.Root().SelectElements("w:num") {
		cp := n.Copy()
		shiftIntAttr(cp, "w:numId", numOffset)
		if ref := cp.SelectElement("w:abstractNumId"); ref != nil {
			shiftIntAttr(ref, "w:val", abstractOffset)
		}
		dstRoot.AddChild(cp)
	}

	for _, numID := range content.FindElements(".//w:numPr/w:numId") {
		if numID.SelectAttrValue("w:val", "0") != "0" {
			shiftIntAttr(numID, "w:val", numOffset)
		}
	}
	return nil
}

// mergeNotes appends footnotes or endnotes of the body with shifted ids.
func (c *composer) mergeNotes(kind string, content *etree.Element) error {
	srcPart, dstPart := c.partOf(c.src, kind), c.partOf(c.dst, kind)
	if srcPart == "" {
		return nil
	}
	if dstPart == "" {
		name, err := c.adoptPart(kind, srcPart)
		if err != nil || name == "" {
			return err
		}
		return c.copyNoteRelationships(srcPart, name)
	}

	tag, ref := "w:footnote", "w:footnoteReference"
	if kind == relTypeEndnotes {
		tag, ref = "w:endnote", "w:endnoteReference"
	}
	srcX, err := c.src.XML(srcPart)
	if err != nil {
		return err
	}
	dstX, err := c.dst.XML(dstPart)
	if err != nil {
		return err
	}
	offset := maxIntAttr(dstX.Root().SelectElements(tag), "w:id")
	if offset < 0 {
		offset = 0
	}

	ids := map[string]string{}
	for _, note := range srcX.Root().SelectElements(tag) {
		if note.SelectAttrValue("w:type", "") != "" {
			continue // separators
		}
		cp := note.Copy()
		old := cp.SelectAttrValue("w:id", "")
		shiftIntAttr(cp, "w:id", offset)
		ids[old] = cp.SelectAttrValue("w:id", "")
		dstX.Root().AddChild(cp)
	}
	for _, r := range content.FindElements(".//" + ref) {
		if id, ok := ids[r.SelectAttrValue("w:id", "")]; ok {
			r.CreateAttr("w:id", id)
		}
	}
	return nil
}

func (c *composer) copyNoteRelationships(srcPart, dstPart string) error {
	if !c.src.HasPart(relsPartFor(srcPart)) {
		return nil
	}
	srcRels, err := c.src.Relationships(srcPart)
	if err != nil {
		return err
	}
	x, err := c.dst.XML(dstPart)
	if err != nil {
		return err
	}
	rels, err := c.dst.Relationships(dstPart)
	if err != nil {
		return err
	}
	ids := map[string]string{}
	for _, r := range srcRels.Items {
		if r.External {
			ids[r.ID] = rels.Add(r.Type, r.Target, true).ID
			continue
		}
		child, err := c.copyPart(r.Resolved)
		if err != nil {
			return err
		}
		if child != "" {
			ids[r.ID] = rels.Add(r.Type, child, false).ID
		}
	}
	rewriteRelIDs(x.Root(), ids)
	rels.save(c.dst)
	return nil
}

// adoptPart copies a whole merged part (styles, numbering, notes) the base
// lacks and links it from the main part.
func (c *composer) adoptPart(kind, srcPart string) (string, error) {
	data, ok := c.src.Part(srcPart)
	if !ok {
		return "", nil
	}
	name := c.freeName(srcPart)
	c.dst.SetPart(name, data)
	c.ct.register(name, c.srcCT.forPart(srcPart))
	c.dstRels.Add(relType(kind), name, false)
	return name, nil
}

func (c *composer) partOf(d *Document, kind string) string {
	rels, err := d.Relationships(d.main)
	if err != nil {
		return ""
	}
	if r := rels.FirstOfType(kind); r != nil && !r.External && d.HasPart(r.Resolved) {
		return r.Resolved
	}
	return ""
}

// renumberDrawings keeps wp:docPr ids unique across base and body.
func (c *composer) renumberDrawings(base, content *etree.Element) {
	next := maxIntAttr(base.FindElements(".//wp:docPr"), "id") + 1
	if next < 1 {
		next = 1
	}
	for _, pr := range content.FindElements(".//wp:docPr") {
		pr.CreateAttr("id", strconv.Itoa(next))
		next++
	}
}

// mergeNamespaces declares on the base root every namespace prefix the body
// root declares, and extends mc:Ignorable accordingly.
func (c *composer) mergeNamespaces() {
	dstX, err := c.dst.XML(c.dst.main)
	if err != nil {
		return
	}
	srcX, err := c.src.XML(c.src.main)
	if err != nil {
		return
	}
	dstRoot, srcRoot := dstX.Root(), srcX.Root()

	for _, a := range srcRoot.Attr {
		if a.Space != "xmlns" {
			continue
		}
		if dstRoot.SelectAttr("xmlns:"+a.Key) == nil {
			dstRoot.CreateAttr("xmlns:"+a.Key, a.Value)
		}
	}

	srcIgnorable := strings.Fields(srcRoot.SelectAttrValue("mc:Ignorable", ""))
	if len(srcIgnorable) == 0 {
		return
	}
	merged := strings.Fields(dstRoot.SelectAttrValue("mc:Ignorable", ""))
	seen := map[string]bool{}
	for _, p := range merged {
		seen[p] = true
	}
	for _, p := range srcIgnorable {
		if !seen[p] {
			seen[p] = true
			merged = append(merged, p)
		}
	}
	dstRoot.CreateAttr("mc:Ignorable", strings.Join(merged, " "))
}

// clone returns an independent copy of d.
func (d *Document) clone() (*Document, error) {
	out := &Document{
		names: append([]string(nil), d.names...),
		parts: make(map[string][]byte, len(d.parts)),
		xml:   make(map[string]*etree.Document),
		main:  d.main,
	}
	for _, name := range d.names {
		data, ok := d.Part(name)
		if !ok {
			return nil, apperrors.TemplateIntegrity("part %s vanished", name)
		}
		out.parts[name] = append([]byte(nil), data...)
	}
	return out, nil
}

func maxIntAttr(els []*etree.Element, attr string) int {
	highest := -1
	for _, el := range els {
		if n, err := strconv.Atoi(el.SelectAttrValue(attr, "")); err == nil && n > highest {
			highest = n
		}
	}
	return highest
}

func shiftIntAttr(el *etree.Element, attr string, offset int) {
	n, err := strconv.Atoi(el.SelectAttrValue(attr, ""))
	if err != nil {
		return
	}
	el.CreateAttr(attr, strconv.Itoa(n+offset))
}
