package predict

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"

	"github.com/google/uuid"
)

// Form layout expected by the prediction endpoint
const (
	FieldName        = "image"
	FileName         = "image.jpg"
	ImageContentType = "image/jpeg"
)

// NewBoundary returns a boundary token that is unique per request.
func NewBoundary() string {
	return "Boundary-" + uuid.NewString()
}

// EncodeImageForm builds a multipart/form-data body holding image as the
// single "image" part. It returns the body and the Content-Type header value.
func EncodeImageForm(image []byte, boundary string) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	body.Grow(len(image) + 256)

	w := multipart.NewWriter(body)
	if err := w.SetBoundary(boundary); err != nil {
		return nil, "", fmt.Errorf("invalid boundary: %w", err)
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, FieldName, FileName))
	header.Set("Content-Type", ImageContentType)

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form part: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", fmt.Errorf("failed to write image part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close form: %w", err)
	}

	return body, w.FormDataContentType(), nil
}
