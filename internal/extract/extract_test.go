package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Name: Jane Doe</w:t></w:r></w:p>
    <w:p><w:r><w:t xml:space="preserve">What sparks </w:t></w:r><w:r><w:t>joy</w:t></w:r><w:r><w:tab/><w:t>music</w:t></w:r></w:p>
  </w:body>
</w:document>`

func buildDocx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	ct, err := zw.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = ct.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`))
	require.NoError(t, err)

	doc, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = doc.Write([]byte(body))
	require.NoError(t, err)

	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDocxText(t *testing.T) {
	data := buildDocx(t, documentXML)

	assert.Equal(t, MIMEDOCX, DetectType("essay.docx", data))

	text, err := Text("essay.docx", data)
	require.NoError(t, err)
	assert.Equal(t, "Name: Jane Doe\nWhat sparks joy\tmusic", text)
}

func TestEmptyDocx(t *testing.T) {
	data := buildDocx(t, `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p/></w:body></w:document>`)

	_, err := Text("empty.docx", data)
	assert.True(t, errors.Is(err, ErrEmptyText))
}

func TestUnsupportedType(t *testing.T) {
	_, err := Text("notes.txt", []byte("plain text notes"))
	assert.True(t, errors.Is(err, ErrUnsupportedType))
}

func TestBrokenPDF(t *testing.T) {
	data := []byte("%PDF-1.4\nthis is not really a pdf")

	assert.Equal(t, MIMEPDF, DetectType("x.pdf", data))
	_, err := Text("x.pdf", data)
	assert.Error(t, err)
}

func TestExtractorUsesDeclaredTypeForZip(t *testing.T) {
	data := buildDocx(t, documentXML)
	ex := NewExtractor(zap.NewNop())

	text, err := ex.Extract(context.Background(), "upload", MIMEDOCX, data)
	require.NoError(t, err)
	assert.Contains(t, text, "Jane Doe")
}
