package exporter

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"

	"qbank/internal/question"
)

// DOCXEncoder writes a minimal WordprocessingML package: one document part
// and a styles part defining Heading1.
type DOCXEncoder struct{}

const wordNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

type wDocument struct {
	XMLName xml.Name `xml:"w:document"`
	NS      string   `xml:"xmlns:w,attr"`
	Body    wBody    `xml:"w:body"`
}

type wBody struct {
	Paragraphs []wParagraph `xml:"w:p"`
}

type wParagraph struct {
	Props *wParaProps `xml:"w:pPr,omitempty"`
	Runs  []wRun      `xml:"w:r"`
}

type wParaProps struct {
	Style  *wVal    `xml:"w:pStyle,omitempty"`
	Indent *wIndent `xml:"w:ind,omitempty"`
	Align  *wVal    `xml:"w:jc,omitempty"`
}

type wIndent struct {
	Left int `xml:"w:left,attr"`
}

type wRun struct {
	Props *wRunProps `xml:"w:rPr,omitempty"`
	Text  wText      `xml:"w:t"`
}

type wRunProps struct {
	Bold   *struct{} `xml:"w:b,omitempty"`
	Italic *struct{} `xml:"w:i,omitempty"`
	Color  *wVal     `xml:"w:color,omitempty"`
	Size   *wVal     `xml:"w:sz,omitempty"`
}

type wText struct {
	Space string `xml:"xml:space,attr,omitempty"`
	Value string `xml:",chardata"`
}

type wVal struct {
	Val string `xml:"w:val,attr"`
}

func textRun(s string, props *wRunProps) wRun {
	return wRun{Props: props, Text: wText{Space: "preserve", Value: s}}
}

func spacer() wParagraph {
	return wParagraph{}
}

func buildDocument(items []question.Question, opts Options) wDocument {
	paras := []wParagraph{
		{
			Props: &wParaProps{Style: &wVal{Val: "Heading1"}, Align: &wVal{Val: "center"}},
			Runs:  []wRun{textRun(pdfTitle, nil)},
		},
		spacer(),
	}

	for i, q := range items {
		paras = append(paras, wParagraph{Runs: []wRun{
			textRun(fmt.Sprintf("%d. %s", i+1, q.Text), &wRunProps{Bold: &struct{}{}, Size: &wVal{Val: "24"}}),
			textRun(fmt.Sprintf(" (%s)", q.Difficulty), &wRunProps{Italic: &struct{}{}, Size: &wVal{Val: "20"}}),
		}})
		for j, opt := range q.Options {
			paras = append(paras, wParagraph{
				Props: &wParaProps{Indent: &wIndent{Left: 720}},
				Runs:  []wRun{textRun(fmt.Sprintf("%s) %s", question.LetterFor(j+1), opt), nil)},
			})
		}
		if opts.IncludeAnswers {
			paras = append(paras, wParagraph{
				Props: &wParaProps{Indent: &wIndent{Left: 720}},
				Runs: []wRun{textRun("Correct: "+q.CorrectLetter(), &wRunProps{
					Bold:  &struct{}{},
					Color: &wVal{Val: "008000"},
				})},
			})
		}
		paras = append(paras, spacer())
	}

	return wDocument{NS: wordNS, Body: wBody{Paragraphs: paras}}
}

const docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
	`</Types>`

const docxRootRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`</Relationships>`

const docxDocumentRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` +
	`</Relationships>`

const docxStyles = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="` + wordNS + `">` +
	`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/><w:rPr><w:sz w:val="22"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/>` +
	`<w:pPr><w:spacing w:before="240" w:after="120"/><w:outlineLvl w:val="0"/></w:pPr><w:rPr><w:b/><w:sz w:val="32"/></w:rPr></w:style>` +
	`</w:styles>`

func (DOCXEncoder) Encode(items []question.Question, opts Options) ([]byte, error) {
	doc, err := xml.Marshal(buildDocument(items, opts))
	if err != nil {
		return nil, &EncodingError{Format: FormatDOCX, Err: err}
	}

	parts := []struct {
		name string
		body []byte
	}{
		{"[Content_Types].xml", []byte(docxContentTypes)},
		{"_rels/.rels", []byte(docxRootRels)},
		{"word/document.xml", append([]byte(xml.Header), doc...)},
		{"word/styles.xml", []byte(docxStyles)},
		{"word/_rels/document.xml.rels", []byte(docxDocumentRels)},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range parts {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     p.name,
			Method:   zip.Deflate,
			Modified: fixedTime,
		})
		if err != nil {
			return nil, &EncodingError{Format: FormatDOCX, Err: err}
		}
		if _, err := w.Write(p.body); err != nil {
			return nil, &EncodingError{Format: FormatDOCX, Err: err}
		}
	}
	if err := zw.Close(); err != nil {
		return nil, &EncodingError{Format: FormatDOCX, Err: err}
	}
	return buf.Bytes(), nil
}

func (DOCXEncoder) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
}
func (DOCXEncoder) FileExtension() string { return "docx" }
