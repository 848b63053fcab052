// Package documents validates uploaded resume and job description files.
package documents

import (
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"resume-insight/internal/shared/apperr"
	"resume-insight/internal/shared/util"
)

// Upload is a file received from a client, held in memory for the lifetime of one job.
type Upload struct {
	FileName  string
	MimeType  string
	SizeBytes int64
	Data      []byte
}

// Ext returns the lower-cased file extension including the dot.
func (u *Upload) Ext() string {
	return strings.ToLower(filepath.Ext(u.FileName))
}

// Policy describes which uploads are accepted.
type Policy struct {
	AllowedExtensions []string
	MaxBytes          int64
}

// DefaultPolicy mirrors the configuration defaults.
func DefaultPolicy() Policy {
	return Policy{
		AllowedExtensions: []string{".pdf", ".doc", ".docx", ".txt"},
		MaxBytes:          5 << 20,
	}
}

// Allows reports whether ext is on the allow-list.
func (p Policy) Allows(ext string) bool {
	ext = strings.ToLower(ext)
	for _, allowed := range p.AllowedExtensions {
		if allowed == ext {
			return true
		}
	}
	return false
}

// FromFileHeader reads a multipart file into an Upload and validates it.
// label names the form field in validation messages.
func FromFileHeader(fh *multipart.FileHeader, label string, p Policy) (*Upload, error) {
	if fh == nil {
		return nil, apperr.Validation("Missing files")
	}
	name, err := util.SanitizeFileName(filepath.Base(fh.Filename))
	if err != nil {
		return nil, apperr.Validation("%s has an invalid file name", label)
	}
	if p.MaxBytes > 0 && fh.Size > p.MaxBytes {
		return nil, apperr.Validation("%s exceeds the maximum size of %d bytes", label, p.MaxBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, apperr.Validation("unable to read %s", label)
	}
	defer f.Close()

	limit := p.MaxBytes
	if limit <= 0 {
		limit = fh.Size
	}
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", label)
	}

	up := &Upload{
		FileName:  name,
		MimeType:  strings.TrimSpace(fh.Header.Get("Content-Type")),
		SizeBytes: int64(len(data)),
		Data:      data,
	}
	if err := Validate(up, label, p); err != nil {
		return nil, err
	}
	return up, nil
}

// Validate checks extension, size and content of an upload.
func Validate(up *Upload, label string, p Policy) error {
	if up == nil {
		return apperr.Validation("Missing files")
	}
	ext := up.Ext()
	if !p.Allows(ext) {
		return apperr.Validation("%s has unsupported file type %q, allowed: %s", label, ext, strings.Join(p.AllowedExtensions, ", "))
	}
	if up.SizeBytes == 0 || len(up.Data) == 0 {
		return apperr.Validation("%s is empty", label)
	}
	if p.MaxBytes > 0 && up.SizeBytes > p.MaxBytes {
		return apperr.Validation("%s exceeds the maximum size of %d bytes", label, p.MaxBytes)
	}
	if err := checkContent(up.Data, ext); err != nil {
		return apperr.Validation("%s does not look like a valid %s file", label, strings.TrimPrefix(ext, "."))
	}
	if up.MimeType == "" || up.MimeType == "application/octet-stream" {
		up.MimeType = mimeFor(ext, up.Data)
	}
	return nil
}

func mimeFor(ext string, data []byte) string {
	switch ext {
	case ".pdf":
		return mimePDF
	case ".docx":
		return mimeDOCX
	case ".doc":
		return mimeDOC
	case ".txt":
		return "text/plain; charset=utf-8"
	default:
		return http.DetectContentType(data)
	}
}
