package docx

import (
	"github.com/beevik/etree"
)

const (
	wordprocessingNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	officeRelNS      = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	drawingNS        = "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"

	mainContentType   = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	stylesContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"
)

const minimalContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="` + mainContentType + `"/>` +
	`<Override PartName="/word/styles.xml" ContentType="` + stylesContentType + `"/>` +
	`</Types>`

const minimalPackageRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="` + relationshipNS + `">` +
	`<Relationship Id="rId1" Type="` + relTypePrefix + `officeDocument" Target="word/document.xml"/>` +
	`</Relationships>`

const minimalDocumentRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="` + relationshipNS + `">` +
	`<Relationship Id="rId1" Type="` + relTypePrefix + `styles" Target="styles.xml"/>` +
	`</Relationships>`

const minimalStyles = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="` + wordprocessingNS + `">` +
	`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/></w:style>` +
	`</w:styles>`

// New builds a minimal package whose body holds bodyXML, given as
// WordprocessingML elements with the w, r and wp prefixes.
func New(bodyXML string) (*Document, error) {
	main := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="` + wordprocessingNS + `" xmlns:r="` + officeRelNS + `" xmlns:wp="` + drawingNS + `">` +
		`<w:body>` + bodyXML + `</w:body></w:document>`

	x := etree.NewDocument()
	if err := x.ReadFromString(main); err != nil {
		return nil, err
	}

	d := &Document{
		parts: map[string][]byte{},
		xml:   map[string]*etree.Document{},
		main:  "word/document.xml",
	}
	d.SetPart(contentTypesPart, []byte(minimalContentTypes))
	d.SetPart(packageRelsPart, []byte(minimalPackageRels))
	d.SetXML("word/document.xml", x)
	d.SetPart("word/_rels/document.xml.rels", []byte(minimalDocumentRels))
	d.SetPart("word/styles.xml", []byte(minimalStyles))
	return d, nil
}
