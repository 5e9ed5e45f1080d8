package docx

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testContentTypes = `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="xml" ContentType="application/xml"/></Types>`

const testRels = `<?xml version="1.0" encoding="UTF-8"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="styles" Target="styles.xml"/></Relationships>`

func buildTemplate(t *testing.T, body string) []byte {
	t.Helper()
	doc := `<?xml version="1.0" encoding="UTF-8"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	for name, content := range map[string]string{
		"[Content_Types].xml":          testContentTypes,
		"word/document.xml":            doc,
		"word/_rels/document.xml.rels": testRels,
	} {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func readPart(t *testing.T, doc []byte, name string) string {
	t.Helper()
	r, err := zip.NewReader(bytes.NewReader(doc), int64(len(doc)))
	require.NoError(t, err)
	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer rc.Close()
		raw, err := io.ReadAll(rc)
		require.NoError(t, err)
		return string(raw)
	}
	t.Fatalf("part %s not found", name)
	return ""
}

func TestRenderHealsSplitTags(t *testing.T) {
	tpl := buildTemplate(t, `<w:p><w:r><w:t>Docente: {teacher_</w:t></w:r><w:r><w:rPr><w:b/></w:rPr><w:t>name}</w:t></w:r></w:p>`)

	out, err := Render(tpl, Data{"teacher_name": "Pérez Soto, Ana"}, nil)
	require.NoError(t, err)

	doc := readPart(t, out, "word/document.xml")
	assert.Contains(t, doc, `<w:t xml:space="preserve">Docente: Pérez Soto, Ana</w:t>`)
	assert.NotContains(t, doc, "{")
	assert.NotContains(t, doc, "}")
}

func TestRenderEscapesAndBreaksLines(t *testing.T) {
	tpl := buildTemplate(t, `<w:p><w:r><w:t>{observations}</w:t></w:r></w:p><w:p><w:r><w:t>[{missing}]</w:t></w:r></w:p>`)

	out, err := Render(tpl, Data{"observations": "a < b & c\r\nsegunda"}, nil)
	require.NoError(t, err)

	doc := readPart(t, out, "word/document.xml")
	assert.Contains(t, doc, `a &lt; b &amp; c</w:t><w:br/><w:t xml:space="preserve">segunda`)
	assert.Contains(t, doc, "[]")
}

func TestRenderParagraphLoop(t *testing.T) {
	body := `<w:p><w:r><w:t>{#evaluations}</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>{teacher_name} - {total_score}</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>{/evaluations}</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Total: {total_evaluations}</w:t></w:r></w:p>`
	data := Data{
		"evaluations": []map[string]interface{}{
			{"teacher_name": "Alvarez, Rosa", "total_score": 18},
			{"teacher_name": "Benavides, Luis", "total_score": 7},
		},
		"total_evaluations": 2,
	}

	out, err := Render(buildTemplate(t, body), data, nil)
	require.NoError(t, err)

	doc := readPart(t, out, "word/document.xml")
	assert.Equal(t, 3, strings.Count(doc, "<w:p>"))
	assert.Contains(t, doc, "Alvarez, Rosa - 18")
	assert.Contains(t, doc, "Benavides, Luis - 7")
	assert.Contains(t, doc, "Total: 2")
	assert.NotContains(t, doc, "evaluations")
}

func TestRenderConditionalSections(t *testing.T) {
	body := `<w:p><w:r><w:t>{#has_evidence}Con evidencia{/has_evidence}{^has_evidence}Sin evidencia{/has_evidence}</w:t></w:r></w:p>`
	tpl := buildTemplate(t, body)

	out, err := Render(tpl, Data{"has_evidence": false}, nil)
	require.NoError(t, err)
	doc := readPart(t, out, "word/document.xml")
	assert.Contains(t, doc, "Sin evidencia")
	assert.NotContains(t, doc, "Con evidencia")

	out, err = Render(tpl, Data{"has_evidence": true}, nil)
	require.NoError(t, err)
	doc = readPart(t, out, "word/document.xml")
	assert.Contains(t, doc, "Con evidencia")
	assert.NotContains(t, doc, "Sin evidencia")
}

func TestRenderExpandsTableRows(t *testing.T) {
	body := `<w:tbl><w:tr><w:tc><w:p><w:r><w:t>Docente</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>Puntaje</w:t></w:r></w:p></w:tc></w:tr>` +
		`<w:tr><w:tc><w:p><w:r><w:t>{#rows}{name}</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>{score}{/rows}</w:t></w:r></w:p></w:tc></w:tr></w:tbl>`
	data := Data{"rows": []interface{}{
		map[string]interface{}{"name": "A", "score": 24},
		map[string]interface{}{"name": "B", "score": 15},
		map[string]interface{}{"name": "C", "score": 6},
	}}

	out, err := Render(buildTemplate(t, body), data, nil)
	require.NoError(t, err)

	doc := readPart(t, out, "word/document.xml")
	assert.Equal(t, 4, strings.Count(doc, "<w:tr>"))
	assert.Equal(t, 4, strings.Count(doc, "</w:tr>"))
	assert.Contains(t, doc, ">A</w:t>")
	assert.Contains(t, doc, ">6</w:t>")
}

func TestRenderEmbedsImages(t *testing.T) {
	tpl := buildTemplate(t, `<w:p><w:r><w:t>{%evidence_image}</w:t></w:r></w:p>`)
	var calls int
	images := func(name string, value interface{}) (*Image, error) {
		calls++
		assert.Equal(t, "evidence_image", name)
		return &Image{Data: []byte{1, 2, 3}, Extension: "png", Width: 100, Height: 50}, nil
	}

	out, err := Render(tpl, Data{"evidence_image": "data:image/png;base64,AQID"}, images)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	doc := readPart(t, out, "word/document.xml")
	assert.Contains(t, doc, `r:embed="rIdTplImg1"`)
	assert.Contains(t, doc, `cx="952500" cy="476250"`)
	assert.Contains(t, doc, `xmlns:wp=`)
	assert.Contains(t, readPart(t, out, "word/_rels/document.xml.rels"), `Target="media/tpl_image1.png"`)
	assert.Contains(t, readPart(t, out, "[Content_Types].xml"), `<Default Extension="png" ContentType="image/png"/>`)
	assert.Equal(t, string([]byte{1, 2, 3}), readPart(t, out, "word/media/tpl_image1.png"))

	out, err = Render(tpl, Data{"evidence_image": ""}, images)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.NotContains(t, readPart(t, out, "word/document.xml"), "w:drawing")
}

func TestRenderRejectsMalformedTemplates(t *testing.T) {
	_, err := Render(buildTemplate(t, `<w:p><w:r><w:t>{name</w:t></w:r></w:p>`), Data{}, nil)
	assert.ErrorIs(t, err, ErrUnclosedTag)

	_, err = Render(buildTemplate(t, `<w:p><w:r><w:t>name}</w:t></w:r></w:p>`), Data{}, nil)
	assert.ErrorIs(t, err, ErrUnopenedTag)

	_, err = Render(buildTemplate(t, `<w:p><w:r><w:t>{#a}x{/b}</w:t></w:r></w:p>`), Data{}, nil)
	assert.ErrorIs(t, err, ErrSection)

	_, err = Render(buildTemplate(t, `<w:p><w:r><w:t>{#a}x</w:t></w:r></w:p>`), Data{}, nil)
	assert.ErrorIs(t, err, ErrSection)

	_, err = Render(buildTemplate(t, `<w:p><w:r><w:t>{}</w:t></w:r></w:p>`), Data{}, nil)
	assert.ErrorIs(t, err, ErrEmptyTag)

	_, err = Render([]byte("not a zip"), Data{}, nil)
	assert.Error(t, err)
}
