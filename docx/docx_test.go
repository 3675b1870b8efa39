package docx

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fapdraft-backend/apperrors"
)

const headerContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.header+xml"

func run(text string) string {
	return `<w:r><w:t xml:space="preserve">` + text + `</w:t></w:r>`
}

func para(runs ...string) string {
	return "<w:p>" + strings.Join(runs, "") + "</w:p>"
}

func mustNew(t *testing.T, body string) *Document {
	t.Helper()
	d, err := New(body)
	require.NoError(t, err)
	return d
}

// addPart registers a part linked from the main document and returns the relationship id.
func addPart(t *testing.T, d *Document, name, contentType, kind, data string) string {
	t.Helper()
	d.SetPart(name, []byte(data))
	ct, err := d.contentTypes()
	require.NoError(t, err)
	ct.register(name, contentType)
	rels, err := d.Relationships(d.MainPart())
	require.NoError(t, err)
	r := rels.Add(relType(kind), name, false)
	rels.save(d)
	return r.ID
}

func reopen(t *testing.T, d *Document) *Document {
	t.Helper()
	data, err := d.Bytes()
	require.NoError(t, err)
	out, err := Read(data)
	require.NoError(t, err)
	return out
}

func TestRead(t *testing.T) {
	t.Run("should round trip a package", func(t *testing.T) {
		d := reopen(t, mustNew(t, para(run("Olá"))))
		assert.Equal(t, "word/document.xml", d.MainPart())
		text, err := d.Text()
		require.NoError(t, err)
		assert.Equal(t, "Olá", text)
	})

	t.Run("should reject bytes that are not a package", func(t *testing.T) {
		_, err := Read([]byte("not a zip"))
		assert.ErrorIs(t, err, apperrors.ErrTemplateIntegrity)
	})
}

func TestApplyReplacements(t *testing.T) {
	t.Run("should replace a placeholder split across three runs", func(t *testing.T) {
		d := mustNew(t, para(
			`<w:r><w:rPr><w:b/></w:rPr><w:t>Cliente: {{cli</w:t></w:r>`,
			run("ente_"),
			run("nome}} fim"),
		))

		n, err := ApplyReplacements(d, map[string]string{"{{cliente_nome}}": "ACME Ltda"})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		text, err := d.Text()
		require.NoError(t, err)
		assert.Equal(t, "Cliente: ACME Ltda fim", text)

		body, err := d.Body()
		require.NoError(t, err)
		runs := paragraphRuns(paragraphs(body)[0])
		assert.Equal(t, "Cliente: ACME Ltda", runText(runs[0]))
		assert.NotNil(t, runs[0].FindElement("./w:rPr/w:b"))
		assert.Equal(t, " fim", runText(runs[2]))
	})

	t.Run("should replace placeholders inside a single run", func(t *testing.T) {
		d := mustNew(t, para(run("{{a}} e {{a}} e {{b}}")))
		n, err := ApplyReplacements(d, map[string]string{"{{a}}": "1", "{{b}}": "2"})
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		text, _ := d.Text()
		assert.Equal(t, "1 e 1 e 2", text)
	})

	t.Run("should handle several split occurrences in one paragraph", func(t *testing.T) {
		d := mustNew(t, para(run("{{x"), run("}} + {"), run("{x}}")))
		_, err := ApplyReplacements(d, map[string]string{"{{x}}": "dez"})
		require.NoError(t, err)
		text, _ := d.Text()
		assert.Equal(t, "dez + dez", text)
	})

	t.Run("should keep a line break in place when replacing after it", func(t *testing.T) {
		d := mustNew(t, para(`<w:r><w:t>Linha A</w:t><w:br/><w:t>{{x}}</w:t></w:r>`))
		n, err := ApplyReplacements(d, map[string]string{"{{x}}": "VAL"})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		text, _ := d.Text()
		assert.Equal(t, "Linha A\nVAL", text)
	})

	t.Run("should keep tabs and breaks around a placeholder split across runs", func(t *testing.T) {
		d := mustNew(t, para(
			`<w:r><w:t>Nome:</w:t><w:tab/><w:t>{{segurado_</w:t></w:r>`,
			`<w:r><w:t>nome}}</w:t><w:br/><w:t>NIT</w:t></w:r>`,
		))
		n, err := ApplyReplacements(d, map[string]string{"{{segurado_nome}}": "José"})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		text, _ := d.Text()
		assert.Equal(t, "Nome:\tJosé\nNIT", text)
	})

	t.Run("should not match a placeholder interrupted by a break", func(t *testing.T) {
		d := mustNew(t, para(`<w:r><w:t>{{x</w:t><w:br/><w:t>}}</w:t></w:r>`))
		n, err := ApplyReplacements(d, map[string]string{"{{x}}": "VAL"})
		require.NoError(t, err)
		assert.Zero(t, n)
		text, _ := d.Text()
		assert.Equal(t, "{{x\n}}", text)
	})

	t.Run("should be idempotent", func(t *testing.T) {
		d := mustNew(t, para(run("{{caso_"), run("titulo}}")))
		values := map[string]string{"{{caso_titulo}}": "Revisão"}
		_, err := ApplyReplacements(d, values)
		require.NoError(t, err)
		first, _ := d.Bytes()

		n, err := ApplyReplacements(d, values)
		require.NoError(t, err)
		assert.Zero(t, n)
		second, _ := d.Bytes()
		assert.Equal(t, first, second)
	})

	t.Run("should leave unknown placeholders and sentinels untouched", func(t *testing.T) {
		d := mustNew(t, para(run("{{desconhecido}} {{imagem_cat}}")))
		_, err := ApplyReplacements(d, map[string]string{"{{imagem_cat}}": "{{imagem_cat}}"})
		require.NoError(t, err)
		text, _ := d.Text()
		assert.Equal(t, "{{desconhecido}} {{imagem_cat}}", text)
	})

	t.Run("should replace in headers and table cells", func(t *testing.T) {
		d := mustNew(t, `<w:tbl><w:tr><w:tc>`+para(run("{{vara"), run("_nome}}"))+`</w:tc></w:tr></w:tbl>`)
		addPart(t, d, "word/header1.xml", headerContentType, "header",
			`<w:hdr xmlns:w="`+wordprocessingNS+`">`+para(run("Processo {{caso_id}}"))+`</w:hdr>`)

		_, err := ApplyReplacements(d, map[string]string{"{{vara_nome}}": "1ª Vara", "{{caso_id}}": "42"})
		require.NoError(t, err)

		d = reopen(t, d)
		text, _ := d.Text()
		assert.Equal(t, "1ª Vara", text)
		header, err := d.XML("word/header1.xml")
		require.NoError(t, err)
		assert.Equal(t, "Processo 42", paragraphText(paragraphs(header.Root())[0]))
	})

	t.Run("should reject values containing placeholders", func(t *testing.T) {
		d := mustNew(t, para(run("{{a}}")))
		_, err := ApplyReplacements(d, map[string]string{"{{a}}": "ver {{b}}"})
		assert.ErrorIs(t, err, apperrors.ErrTemplateIntegrity)
	})
}

func benefitsTable(header ...string) string {
	var b strings.Builder
	b.WriteString("<w:tbl><w:tblGrid>")
	for range header {
		b.WriteString(`<w:gridCol w:w="1000"/>`)
	}
	b.WriteString(`</w:tblGrid><w:tr><w:trPr><w:tblHeader/></w:trPr>`)
	for _, h := range header {
		b.WriteString(`<w:tc><w:tcPr><w:tcW w:w="1000"/></w:tcPr>` + para(run(h)) + `</w:tc>`)
	}
	b.WriteString("</w:tr></w:tbl>")
	return b.String()
}

func TestFillBenefitsTable(t *testing.T) {
	header := []string{"Item", "Vigência", "CNPJ", "Empregado", "NIT", "Tipo", "Benefício", "CAT"}
	rows := [][]string{
		{"1", "2019 a 2021", "12.345.678/0001-90", "José da Silva", "1", "B91", "111", "15/08/2019"},
		{"2", "2020", "12.345.678/0001-90", "Maria Santos", "2", "B91", "222", "10/02/2020"},
		{"3", "2021", "12.345.678/0001-90", "Caio", "3", "B94", "333", ""},
	}

	t.Run("should append one formatted row per benefit", func(t *testing.T) {
		d := mustNew(t, para(run("Tabela:"))+benefitsTable(header...))

		found, err := FillBenefitsTable(d, rows)
		require.NoError(t, err)
		require.True(t, found)

		d = reopen(t, d)
		body, _ := d.Body()
		trs := body.FindElement(".//w:tbl").SelectElements("w:tr")
		require.Len(t, trs, 4)

		for i, tr := range trs[1:] {
			assert.Nil(t, tr.FindElement("./w:trPr/w:tblHeader"))
			cells := tr.SelectElements("w:tc")
			require.Len(t, cells, 8)
			for j, tc := range cells {
				assert.Equal(t, rows[i][j], cellText(tc))
				assert.NotNil(t, tc.SelectElement("w:tcPr"))
				assert.Equal(t, "center", tc.FindElement(".//w:pPr/w:jc").SelectAttrValue("w:val", ""))
				assert.Equal(t, "Avenir Next LT Pro", tc.FindElement(".//w:rPr/w:rFonts").SelectAttrValue("w:ascii", ""))
				assert.Equal(t, "14", tc.FindElement(".//w:rPr/w:sz").SelectAttrValue("w:val", ""))
			}
		}
	})

	t.Run("should fall back to a wide table without keywords", func(t *testing.T) {
		d := mustNew(t, benefitsTable("", "", "")+benefitsTable("A", "B", "C", "D", "E", "F"))
		found, err := FillBenefitsTable(d, rows[:1])
		require.NoError(t, err)
		require.True(t, found)

		body, _ := d.Body()
		tables := body.FindElements(".//w:tbl")
		assert.Len(t, tables[0].SelectElements("w:tr"), 1)
		filled := tables[1].SelectElements("w:tr")
		require.Len(t, filled, 2)
		cells := filled[1].SelectElements("w:tc")
		assert.Equal(t, "1", cellText(cells[0]))
		assert.Equal(t, "José da Silva", cellText(cells[3]))
	})

	t.Run("should report a missing table", func(t *testing.T) {
		d := mustNew(t, benefitsTable("", "", ""))
		found, err := FillBenefitsTable(d, rows)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("should match headers regardless of accents and case", func(t *testing.T) {
		d := mustNew(t, benefitsTable("NÚMERO", "nb"))
		found, err := FillBenefitsTable(d, rows[:1])
		require.NoError(t, err)
		assert.True(t, found)
	})
}

func TestCompose(t *testing.T) {
	base := mustNew(t, para(run("CAPA"), `<w:r><w:br w:type="page"/></w:r>`)+
		`<w:sectPr><w:headerReference w:type="default" r:id="rId2"/><w:pgSz w:w="11906" w:h="16838"/></w:sectPr>`)
	headerID := addPart(t, base, "word/header1.xml", headerContentType, "header",
		`<w:hdr xmlns:w="`+wordprocessingNS+`">`+para(run("Escritório"))+`</w:hdr>`)
	require.Equal(t, "rId2", headerID)
	numbering := `<w:numbering xmlns:w="` + wordprocessingNS + `">` +
		`<w:abstractNum w:abstractNumId="0"><w:lvl w:ilvl="0"/></w:abstractNum>` +
		`<w:num w:numId="1"><w:abstractNumId w:val="0"/></w:num></w:numbering>`
	addPart(t, base, "word/numbering.xml", "application/vnd.openxmlformats-officedocument.wordprocessingml.numbering+xml", "numbering", numbering)

	body := mustNew(t,
		`<w:p><w:pPr><w:pStyle w:val="Corpo"/><w:numPr><w:ilvl w:val="0"/><w:numId w:val="1"/></w:numPr></w:pPr>`+run("CORPO")+`</w:p>`+
			para(`<w:r><w:drawing><wp:inline><wp:docPr id="1" name="img"/><w:blipStub r:embed="rId2"/></wp:inline></w:drawing></w:r>`)+
			`<w:sectPr><w:pgSz w:w="11906" w:h="16838"/></w:sectPr>`)
	imageID := addPart(t, body, "word/media/image1.png", "image/png", "image", "PNGDATA")
	require.Equal(t, "rId2", imageID)
	addPart(t, body, "word/numbering.xml", "application/vnd.openxmlformats-officedocument.wordprocessingml.numbering+xml", "numbering", numbering)
	styles, err := body.XML("word/styles.xml")
	require.NoError(t, err)
	styles.Root().CreateElement("w:style").CreateAttr("w:styleId", "Corpo")

	out, err := Compose(base, body)
	require.NoError(t, err)
	out = reopen(t, out)
	outBody, err := out.Body()
	require.NoError(t, err)

	t.Run("should place the body after the base", func(t *testing.T) {
		text, err := out.Text()
		require.NoError(t, err)
		assert.Equal(t, []string{"CAPA", "CORPO", ""}, strings.Split(text, "\n"))
	})

	t.Run("should close the base section in its last paragraph", func(t *testing.T) {
		first := outBody.SelectElements("w:p")[0]
		sect := first.FindElement("./w:pPr/w:sectPr")
		require.NotNil(t, sect)
		assert.Equal(t, "rId2", sect.FindElement("./w:headerReference").SelectAttrValue("r:id", ""))
		assert.Nil(t, first.FindElement(".//w:br"))

		final := outBody.ChildElements()[len(outBody.ChildElements())-1]
		assert.Equal(t, "sectPr", final.Tag)
	})

	t.Run("should carry images over with a fresh relationship", func(t *testing.T) {
		rels, err := out.Relationships(out.MainPart())
		require.NoError(t, err)
		img := rels.FirstOfType("image")
		require.NotNil(t, img)
		assert.NotEqual(t, "rId2", img.ID)

		stub := outBody.FindElement(".//w:blipStub")
		assert.Equal(t, img.ID, stub.SelectAttrValue("r:embed", ""))

		data, ok := out.Part(img.Resolved)
		require.True(t, ok)
		assert.Equal(t, "PNGDATA", string(data))

		ct, err := out.contentTypes()
		require.NoError(t, err)
		assert.Equal(t, "image/png", ct.forPart(img.Resolved))
	})

	t.Run("should merge styles and remap numbering", func(t *testing.T) {
		st, err := out.XML("word/styles.xml")
		require.NoError(t, err)
		assert.NotNil(t, st.Root().FindElement(`./w:style[@w:styleId='Corpo']`))

		num, err := out.XML("word/numbering.xml")
		require.NoError(t, err)
		assert.Len(t, num.Root().SelectElements("w:abstractNum"), 2)
		nums := num.Root().SelectElements("w:num")
		require.Len(t, nums, 2)
		assert.Equal(t, "2", nums[1].SelectAttrValue("w:numId", ""))
		assert.Equal(t, "1", nums[1].SelectElement("w:abstractNumId").SelectAttrValue("w:val", ""))

		ref := outBody.FindElement(".//w:numPr/w:numId")
		assert.Equal(t, "2", ref.SelectAttrValue("w:val", ""))
	})
}

func TestMarkdown(t *testing.T) {
	t.Run("should render headings, paragraphs and tables", func(t *testing.T) {
		d := mustNew(t,
			`<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr>`+run("Acórdão")+`</w:p>`+
				para(run("Texto do voto."))+
				benefitsTable("NB", "Segurado"))
		md, err := d.Markdown()
		require.NoError(t, err)
		assert.Equal(t, "# Acórdão\n\nTexto do voto.\n\n| NB | Segurado |\n| --- | --- |", md)
	})
}
