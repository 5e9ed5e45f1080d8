package docx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// MimeType is the content type of generated documents.
const MimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

const (
	emuPerPixel  = 9525
	relImageType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
	contentTypes = "[Content_Types].xml"
	mainPart     = "word/document.xml"
	lineBreak    = `</w:t><w:br/><w:t xml:space="preserve">`
)

var (
	templatedPart = regexp.MustCompile(`^word/(document|header\d*|footer\d*)\.xml$`)
	emptyCell     = regexp.MustCompile(`(?s)(<w:tc(?:\s[^>]*)?>)((?:<w:tcPr>.*?</w:tcPr>)?)</w:tc>`)
	xmlEscaper    = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
)

// Image is an inline picture inserted for a {%tag}.
type Image struct {
	Data      []byte
	Extension string
	// Width and Height are display pixels.
	Width  int
	Height int
}

// ImageFunc resolves the value bound to an image tag. A nil Image renders nothing.
type ImageFunc func(name string, value interface{}) (*Image, error)

// Data is the substitution scope handed to Render.
type Data map[string]interface{}

type entry struct {
	header *zip.FileHeader
	file   *zip.File
	data   []byte
}

type docPackage struct {
	entries    []*entry
	byName     map[string]*entry
	images     ImageFunc
	extensions map[string]string
	mediaSeq   int
	drawingSeq int
}

// Render fills template with data and returns the new document bytes.
func Render(template []byte, data Data, images ImageFunc) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(template), int64(len(template)))
	if err != nil {
		return nil, fmt.Errorf("docx: open template: %w", err)
	}
	pkg := &docPackage{byName: make(map[string]*entry), images: images, extensions: make(map[string]string)}
	for _, f := range reader.File {
		e := &entry{header: &f.FileHeader, file: f}
		pkg.entries = append(pkg.entries, e)
		pkg.byName[f.Name] = e
	}
	if pkg.byName[mainPart] == nil || pkg.byName[contentTypes] == nil {
		return nil, fmt.Errorf("docx: template is missing %s", mainPart)
	}

	for _, e := range pkg.entries {
		if !templatedPart.MatchString(e.header.Name) {
			continue
		}
		if err := pkg.renderPart(e, data); err != nil {
			return nil, fmt.Errorf("docx: %s: %w", e.header.Name, err)
		}
	}
	if err := pkg.registerExtensions(); err != nil {
		return nil, err
	}
	return pkg.write()
}

func (p *docPackage) read(e *entry) ([]byte, error) {
	if e.data != nil {
		return e.data, nil
	}
	rc, err := e.file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck
	return io.ReadAll(rc)
}

func (p *docPackage) renderPart(e *entry, data Data) error {
	raw, err := p.read(e)
	if err != nil {
		return err
	}
	nodes, err := compile(string(raw))
	if err != nil {
		return err
	}
	r := &partRenderer{pkg: p}
	if err := r.render(nodes, []map[string]interface{}{data}); err != nil {
		return err
	}
	out := emptyCell.ReplaceAllString(r.out.String(), "$1$2<w:p/></w:tc>")
	if len(r.rels) > 0 {
		out = ensureDrawingNamespaces(out)
		if err := p.addRelationships(e.header.Name, r.rels); err != nil {
			return err
		}
	}
	e.data = []byte(out)
	return nil
}

type relationship struct {
	id     string
	target string
}

type partRenderer struct {
	pkg  *docPackage
	out  strings.Builder
	rels []relationship
}

func (r *partRenderer) render(nodes []node, scopes []map[string]interface{}) error {
	for _, n := range nodes {
		switch n.kind {
		case nodeRaw:
			r.out.WriteString(n.text)
		case nodeValue:
			value, _ := lookup(scopes, n.text)
			r.out.WriteString(formatValue(value))
		case nodeImage:
			value, _ := lookup(scopes, n.text)
			if err := r.image(n.text, value); err != nil {
				return err
			}
		case nodeSection:
			value, _ := lookup(scopes, n.text)
			items := sectionItems(value)
			if n.inverted {
				if len(items) == 0 {
					if err := r.render(n.children, scopes); err != nil {
						return err
					}
				}
				continue
			}
			for _, item := range items {
				if err := r.render(n.children, pushScope(scopes, item)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (r *partRenderer) image(name string, value interface{}) error {
	if r.pkg.images == nil || isEmpty(value) {
		return nil
	}
	img, err := r.pkg.images(name, value)
	if err != nil {
		return fmt.Errorf("image %q: %w", name, err)
	}
	if img == nil || len(img.Data) == 0 {
		return nil
	}
	ext := strings.ToLower(strings.TrimPrefix(img.Extension, "."))
	if ext == "" {
		ext = "png"
	}
	target := r.pkg.addMedia(img.Data, ext)
	rel := relationship{id: fmt.Sprintf("rIdTplImg%d", r.pkg.mediaSeq), target: target}
	r.rels = append(r.rels, rel)

	r.pkg.drawingSeq++
	id := 5000 + r.pkg.drawingSeq
	cx, cy := img.Width*emuPerPixel, img.Height*emuPerPixel
	fmt.Fprintf(&r.out, `</w:t><w:drawing><wp:inline distT="0" distB="0" distL="0" distR="0">`+
		`<wp:extent cx="%d" cy="%d"/><wp:docPr id="%d" name="Imagen %d"/>`+
		`<wp:cNvGraphicFramePr><a:graphicFrameLocks xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" noChangeAspect="1"/></wp:cNvGraphicFramePr>`+
		`<a:graphic xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture">`+
		`<pic:pic xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture"><pic:nvPicPr><pic:cNvPr id="%d" name="%s"/><pic:cNvPicPr/></pic:nvPicPr>`+
		`<pic:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill>`+
		`<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr>`+
		`</pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing><w:t xml:space="preserve">`,
		cx, cy, id, r.pkg.drawingSeq, id, path.Base(target), rel.id, cx, cy)
	return nil
}

func (p *docPackage) addMedia(data []byte, ext string) string {
	for {
		p.mediaSeq++
		name := fmt.Sprintf("word/media/tpl_image%d.%s", p.mediaSeq, ext)
		if _, taken := p.byName[name]; taken {
			continue
		}
		e := &entry{header: &zip.FileHeader{Name: name, Method: zip.Deflate}, data: data}
		p.entries = append(p.entries, e)
		p.byName[name] = e
		p.extensions[ext] = mediaContentType(ext)
		return "media/" + path.Base(name)
	}
}

func mediaContentType(ext string) string {
	switch ext {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "webp":
		return "image/webp"
	case "gif":
		return "image/gif"
	default:
		return "image/png"
	}
}

func (p *docPackage) addRelationships(part string, rels []relationship) error {
	relsName := path.Join(path.Dir(part), "_rels", path.Base(part)+".rels")
	var b strings.Builder
	for _, rel := range rels {
		fmt.Fprintf(&b, `<Relationship Id="%s" Type="%s" Target="%s"/>`, rel.id, relImageType, rel.target)
	}

	e, ok := p.byName[relsName]
	if !ok {
		doc := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` + b.String() + `</Relationships>`
		e = &entry{header: &zip.FileHeader{Name: relsName, Method: zip.Deflate}, data: []byte(doc)}
		p.entries = append(p.entries, e)
		p.byName[relsName] = e
		return nil
	}
	raw, err := p.read(e)
	if err != nil {
		return fmt.Errorf("docx: read %s: %w", relsName, err)
	}
	doc := string(raw)
	idx := strings.LastIndex(doc, "</Relationships>")
	if idx < 0 {
		return fmt.Errorf("docx: malformed %s", relsName)
	}
	e.data = []byte(doc[:idx] + b.String() + doc[idx:])
	return nil
}

func (p *docPackage) registerExtensions() error {
	if len(p.extensions) == 0 {
		return nil
	}
	e := p.byName[contentTypes]
	raw, err := p.read(e)
	if err != nil {
		return fmt.Errorf("docx: read content types: %w", err)
	}
	doc := string(raw)
	lower := strings.ToLower(doc)
	exts := make([]string, 0, len(p.extensions))
	for ext := range p.extensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	var b strings.Builder
	for _, ext := range exts {
		if strings.Contains(lower, `extension="`+ext+`"`) {
			continue
		}
		fmt.Fprintf(&b, `<Default Extension="%s" ContentType="%s"/>`, ext, p.extensions[ext])
	}
	idx := strings.LastIndex(doc, "</Types>")
	if idx < 0 {
		return fmt.Errorf("docx: malformed content types")
	}
	e.data = []byte(doc[:idx] + b.String() + doc[idx:])
	return nil
}

func (p *docPackage) write() ([]byte, error) {
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	for _, e := range p.entries {
		if e.data == nil && e.file != nil {
			if err := w.Copy(e.file); err != nil {
				return nil, fmt.Errorf("docx: copy %s: %w", e.header.Name, err)
			}
			continue
		}
		header := &zip.FileHeader{Name: e.header.Name, Method: zip.Deflate, Modified: e.header.Modified}
		fw, err := w.CreateHeader(header)
		if err != nil {
			return nil, fmt.Errorf("docx: write %s: %w", e.header.Name, err)
		}
		if _, err := fw.Write(e.data); err != nil {
			return nil, fmt.Errorf("docx: write %s: %w", e.header.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("docx: finalize: %w", err)
	}
	return buf.Bytes(), nil
}

var drawingNamespaces = map[string]string{
	"wp": "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing",
	"r":  "http://schemas.openxmlformats.org/officeDocument/2006/relationships",
}

func ensureDrawingNamespaces(xml string) string {
	rootStart := strings.Index(xml, "<w:document")
	if rootStart < 0 {
		rootStart = strings.Index(xml, "<w:hdr")
	}
	if rootStart < 0 {
		rootStart = strings.Index(xml, "<w:ftr")
	}
	if rootStart < 0 {
		return xml
	}
	rootEnd := strings.IndexByte(xml[rootStart:], '>')
	if rootEnd < 0 {
		return xml
	}
	root := xml[rootStart : rootStart+rootEnd]
	var extra strings.Builder
	for _, prefix := range []string{"r", "wp"} {
		if !strings.Contains(root, "xmlns:"+prefix+"=") {
			fmt.Fprintf(&extra, ` xmlns:%s="%s"`, prefix, drawingNamespaces[prefix])
		}
	}
	if extra.Len() == 0 {
		return xml
	}
	nameEnd := rootStart + strings.IndexAny(root, " >/")
	if nameEnd < rootStart {
		nameEnd = rootStart + rootEnd
	}
	return xml[:nameEnd] + extra.String() + xml[nameEnd:]
}

func lookup(scopes []map[string]interface{}, name string) (interface{}, bool) {
	for i := len(scopes) - 1; i >= 0; i-- {
		if v, ok := scopes[i][name]; ok {
			return v, true
		}
	}
	return nil, false
}

func pushScope(scopes []map[string]interface{}, item interface{}) []map[string]interface{} {
	next := make([]map[string]interface{}, len(scopes), len(scopes)+1)
	copy(next, scopes)
	switch v := item.(type) {
	case nil:
		return next
	case map[string]interface{}:
		return append(next, v)
	case Data:
		return append(next, v)
	default:
		return append(next, map[string]interface{}{".": v})
	}
}

func sectionItems(value interface{}) []interface{} {
	if isEmpty(value) {
		return nil
	}
	switch v := value.(type) {
	case bool:
		return []interface{}{nil}
	case map[string]interface{}, Data:
		return []interface{}{v}
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		items := make([]interface{}, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return items
	}
	return []interface{}{nil}
}

func isEmpty(value interface{}) bool {
	if value == nil {
		return true
	}
	switch v := value.(type) {
	case bool:
		return !v
	case string:
		return v == ""
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return rv.IsNil()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return rv.IsZero()
	}
	return false
}

func formatValue(value interface{}) string {
	var s string
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		s = v
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case fmt.Stringer:
		s = v.String()
	default:
		s = fmt.Sprint(v)
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = xmlEscaper.Replace(line)
	}
	return strings.Join(lines, lineBreak)
}
