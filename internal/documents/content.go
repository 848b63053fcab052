package documents

import (
	"bytes"
	"regexp"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeDOC  = "application/msword"
)

var (
	pdfMagic = []byte("%PDF-")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

	errContentMismatch = errors.New("content does not match extension")
)

func checkContent(data []byte, ext string) error {
	switch ext {
	case ".pdf":
		return checkPDF(data)
	case ".docx":
		return checkDOCX(data)
	case ".doc":
		if !bytes.HasPrefix(data, oleMagic) {
			return errContentMismatch
		}
		return nil
	case ".txt":
		if !utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0 {
			return errContentMismatch
		}
		return nil
	default:
		return nil
	}
}

func checkPDF(data []byte) error {
	if !bytes.HasPrefix(data, pdfMagic) {
		return errContentMismatch
	}
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return errors.Wrap(err, "open pdf")
	}
	if r.NumPage() == 0 {
		return errors.Wrap(errContentMismatch, "pdf has no pages")
	}
	return nil
}

func checkDOCX(data []byte) error {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return errors.Wrap(err, "open docx")
	}
	defer doc.Close()
	return nil
}

var docxTags = regexp.MustCompile(`<[^>]*>`)

// PlainText returns the readable text of a validated upload when it can be
// extracted locally. Legacy .doc files return an empty string.
func PlainText(up *Upload) (string, error) {
	switch up.Ext() {
	case ".txt":
		return string(up.Data), nil
	case ".docx":
		doc, err := docx.ReadDocxFromMemory(bytes.NewReader(up.Data), int64(len(up.Data)))
		if err != nil {
			return "", errors.Wrap(err, "open docx")
		}
		defer doc.Close()
		return docxTags.ReplaceAllString(doc.Editable().GetContent(), " "), nil
	case ".pdf":
		r, err := pdf.NewReader(bytes.NewReader(up.Data), int64(len(up.Data)))
		if err != nil {
			return "", errors.Wrap(err, "open pdf")
		}
		var b bytes.Buffer
		for i := 1; i <= r.NumPage(); i++ {
			page := r.Page(i)
			if page.V.IsNull() {
				continue
			}
			text, _ := page.GetPlainText(nil)
			b.WriteString(text)
		}
		return b.String(), nil
	default:
		return "", nil
	}
}
