package docconv

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

// writeZipFixture builds a zip archive with the given members. Member
// order follows the slice so "mimetype first" fixtures stay realistic.
type zipMember struct {
	name string
	data string
}

func writeZipFixture(t *testing.T, path string, members []zipMember) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := zip.NewWriter(f)
	for _, m := range members {
		fw, err := w.Create(m.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(m.data)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

const testDocumentXML = `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"
            xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
<w:body>
<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Quarterly Report</w:t></w:r></w:p>
<w:p><w:r><w:t>Revenue grew in all regions.</w:t></w:r></w:p>
<w:p><w:hyperlink r:id="rId4"><w:r><w:t>full figures</w:t></w:r></w:hyperlink></w:p>
<w:tbl>
<w:tr><w:tc><w:p><w:r><w:t>Region</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>Revenue</w:t></w:r></w:p></w:tc></w:tr>
<w:tr><w:tc><w:p><w:r><w:t>EMEA</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>120</w:t></w:r></w:p></w:tc></w:tr>
</w:tbl>
</w:body>
</w:document>`

const testRelsXML = `<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId4" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink" Target="https://example.com/figures" TargetMode="External"/>
</Relationships>`

const testCoreXML = `<?xml version="1.0" encoding="UTF-8"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties"
                   xmlns:dc="http://purl.org/dc/elements/1.1/"
                   xmlns:dcterms="http://purl.org/dc/terms/">
<dc:title>Quarterly Report</dc:title>
<dc:creator>Ada Example</dc:creator>
<dc:subject>Finance</dc:subject>
<dcterms:created>2025-03-01T10:00:00Z</dcterms:created>
<dcterms:modified>2025-03-02T12:30:00Z</dcterms:modified>
</cp:coreProperties>`

// writeDocxFixture writes a minimal but well-formed .docx file.
func writeDocxFixture(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "report.docx")
	writeZipFixture(t, path, []zipMember{
		{"word/document.xml", testDocumentXML},
		{"word/_rels/document.xml.rels", testRelsXML},
		{"docProps/core.xml", testCoreXML},
	})
	return path
}

const testODTContentXML = `<?xml version="1.0" encoding="UTF-8"?>
<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0"
                         xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0">
<office:body><office:text>
<text:h text:outline-level="1">Field Notes</text:h>
<text:p>Observed at dawn.</text:p>
<text:list>
<text:list-item><text:p>north ridge</text:p></text:list-item>
<text:list-item><text:p>south ridge</text:p></text:list-item>
</text:list>
</office:text></office:body>
</office:document-content>`

const testODTMetaXML = `<?xml version="1.0" encoding="UTF-8"?>
<office:document-meta xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0"
                      xmlns:dc="http://purl.org/dc/elements/1.1/"
                      xmlns:meta="urn:oasis:names:tc:opendocument:xmlns:meta:1.0">
<office:meta>
<dc:title>Field Notes</dc:title>
<dc:creator>Grace Example</dc:creator>
<meta:creation-date>2025-04-01T08:00:00</meta:creation-date>
<dc:date>2025-04-02T09:00:00</dc:date>
</office:meta>
</office:document-meta>`

// writeODTFixture writes a minimal .odt file, mimetype first.
func writeODTFixture(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "notes.odt")
	writeZipFixture(t, path, []zipMember{
		{"mimetype", "application/vnd.oasis.opendocument.text"},
		{"content.xml", testODTContentXML},
		{"meta.xml", testODTMetaXML},
	})
	return path
}

const testSlideXML = `<?xml version="1.0" encoding="UTF-8"?>
<p:sld xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"
       xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">
<p:cSld><p:spTree>
<p:sp><p:txBody>
<a:p><a:r><a:t>Roadmap %d</a:t></a:r></a:p>
<a:p><a:r><a:t>Ship the parser.</a:t></a:r></a:p>
</p:txBody></p:sp>
</p:spTree></p:cSld>
</p:sld>`

func writeTextFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
