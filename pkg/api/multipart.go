package api

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
)

// Multipart describes a multipart/form-data upload with one file part and
// optional plain fields. Requests carrying it use the multipart writer's
// generated boundary content type instead of application/json.
type Multipart struct {
	FileField string
	FileName  string
	File      io.Reader
	Fields    map[string]string
}

// encodeMultipart builds the form body once, so retries re-send identical
// bytes instead of re-reading a consumed file reader.
func encodeMultipart(m *Multipart) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for name, value := range m.Fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("write form field %s: %w", name, err)
		}
	}

	part, err := w.CreateFormFile(m.FileField, m.FileName)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, m.File); err != nil {
		return nil, "", fmt.Errorf("copy file content: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("finalize multipart body: %w", err)
	}

	return buf.Bytes(), w.FormDataContentType(), nil
}
