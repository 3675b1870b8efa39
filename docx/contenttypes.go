package docx

import (
	"path"
	"strings"

	"github.com/beevik/etree"

	"fapdraft-backend/apperrors"
)

type contentTypes struct {
	root *etree.Element
}

func (d *Document) contentTypes() (*contentTypes, error) {
	x, err := d.XML(contentTypesPart)
	if err != nil {
		return nil, apperrors.TemplateIntegrity("package has no content types: %v", err)
	}
	return &contentTypes{root: x.Root()}, nil
}

// forPart returns the content type that applies to part.
func (ct *contentTypes) forPart(part string) string {
	for _, o := range ct.root.SelectElements("Override") {
		if strings.TrimPrefix(o.SelectAttrValue("PartName", ""), "/") == part {
			return o.SelectAttrValue("ContentType", "")
		}
	}
	return ct.forExtension(strings.TrimPrefix(path.Ext(part), "."))
}

func (ct *contentTypes) forExtension(ext string) string {
	for _, def := range ct.root.SelectElements("Default") {
		if strings.EqualFold(def.SelectAttrValue("Extension", ""), ext) {
			return def.SelectAttrValue("ContentType", "")
		}
	}
	return ""
}

func (ct *contentTypes) hasOverride(part string) bool {
	for _, o := range ct.root.SelectElements("Override") {
		if strings.TrimPrefix(o.SelectAttrValue("PartName", ""), "/") == part {
			return true
		}
	}
	return false
}

// register makes part resolvable to contentType, through the extension
// default when it already matches and an override otherwise.
func (ct *contentTypes) register(part, contentType string) {
	if contentType == "" || ct.hasOverride(part) {
		return
	}
	ext := strings.TrimPrefix(path.Ext(part), ".")
	switch existing := ct.forExtension(ext); {
	case existing == contentType:
		return
	case existing == "" && ext != "" && ext != "xml":
		def := etree.NewElement("Default")
		def.CreateAttr("Extension", ext)
		def.CreateAttr("ContentType", contentType)
		ct.root.InsertChildAt(0, def)
	default:
		o := ct.root.CreateElement("Override")
		o.CreateAttr("PartName", "/"+part)
		o.CreateAttr("ContentType", contentType)
	}
}
