package api

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
)

// form builds a multipart/form-data body.
type form struct {
	buf bytes.Buffer
	w   *multipart.Writer
	err error
}

func newForm() *form {
	f := &form{}
	f.w = multipart.NewWriter(&f.buf)
	return f
}

func (f *form) field(name, value string) *form {
	if f.err == nil {
		f.err = f.w.WriteField(name, value)
	}
	return f
}

// file attaches the file at path as a text/csv part.
func (f *form) file(name, path string) *form {
	if f.err != nil {
		return f
	}
	src, err := os.Open(path) //nolint:gosec // G304: path is chosen by the operator
	if err != nil {
		f.err = fmt.Errorf("failed to open %s: %w", path, err)
		return f
	}
	defer func() { _ = src.Close() }()

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, name, filepath.Base(path)))
	h.Set("Content-Type", "text/csv")
	part, err := f.w.CreatePart(h)
	if err != nil {
		f.err = err
		return f
	}
	if _, err := io.Copy(part, src); err != nil {
		f.err = fmt.Errorf("failed to read %s: %w", path, err)
	}
	return f
}

// finish closes the writer and returns the body and its content type.
func (f *form) finish() (io.Reader, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	if err := f.w.Close(); err != nil {
		return nil, "", err
	}
	return &f.buf, f.w.FormDataContentType(), nil
}
