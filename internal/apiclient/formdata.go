package apiclient

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"
)

// File is a single file to send in a multipart body.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// FormData is a multipart/form-data body under construction. Parts are
// written in the order they were added.
type FormData struct {
	parts []formPart
}

type formPart struct {
	field string
	value string
	file  *File
}

func NewFormData() *FormData {
	return &FormData{}
}

// AddField adds a plain text field.
func (fd *FormData) AddField(name, value string) *FormData {
	fd.parts = append(fd.parts, formPart{field: name, value: value})
	return fd
}

// AddFile adds a file part under the given field name.
func (fd *FormData) AddFile(field string, f File) *FormData {
	fCopy := f
	fd.parts = append(fd.parts, formPart{field: field, file: &fCopy})
	return fd
}

// Len returns the number of parts added.
func (fd *FormData) Len() int {
	return len(fd.parts)
}

// FileCount returns the number of file parts added.
func (fd *FormData) FileCount() int {
	var n int
	for _, p := range fd.parts {
		if p.file != nil {
			n++
		}
	}
	return n
}

func (fd *FormData) encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, p := range fd.parts {
		if p.file == nil {
			if err := w.WriteField(p.field, p.value); err != nil {
				return nil, "", err
			}
			continue
		}

		ct := p.file.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}

		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(p.field), escapeQuotes(p.file.Name)))
		h.Set("Content-Type", ct)

		pw, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := pw.Write(p.file.Data); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
