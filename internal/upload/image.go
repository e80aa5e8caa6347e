package upload

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// MaxBytes caps a single source image.
const MaxBytes = 20 << 20

var (
	ErrEmpty    = errors.New("image is empty")
	ErrNotImage = errors.New("file is not an image")
	ErrTooLarge = errors.New("image is too large")
)

// Image is a decoded source photo held as a data URL, the form the model
// request and the history ledger both carry.
type Image struct {
	DataURL  string `json:"dataUrl"`
	MIMEType string `json:"mimeType"`
	Name     string `json:"name,omitempty"`
	Size     int    `json:"size"`
}

func (img Image) IsZero() bool {
	return img.DataURL == ""
}

// Payload is the base64 part of the data URL.
func (img Image) Payload() string {
	if idx := strings.IndexByte(img.DataURL, ','); idx >= 0 {
		return img.DataURL[idx+1:]
	}
	return img.DataURL
}

func (img Image) Bytes() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(img.Payload())
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return data, nil
}

// FromBytes validates raw upload bytes. An empty or generic declared type is
// replaced by the sniffed one; anything that is not image/* is rejected.
func FromBytes(name, declaredMIME string, data []byte) (Image, error) {
	if len(data) == 0 {
		return Image{}, ErrEmpty
	}
	if len(data) > MaxBytes {
		return Image{}, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}

	mimeType := baseMIME(declaredMIME)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = baseMIME(http.DetectContentType(data))
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return Image{}, fmt.Errorf("%w: %s", ErrNotImage, mimeType)
	}

	return Image{
		DataURL:  "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data),
		MIMEType: mimeType,
		Name:     strings.TrimSpace(name),
		Size:     len(data),
	}, nil
}

// FromDataURL accepts "data:<mime>;base64,<payload>".
func FromDataURL(name, dataURL string) (Image, error) {
	dataURL = strings.TrimSpace(dataURL)
	if dataURL == "" {
		return Image{}, ErrEmpty
	}

	const prefix = "data:"
	if !strings.HasPrefix(dataURL, prefix) {
		return Image{}, errors.New("invalid data url")
	}
	meta, payload, ok := strings.Cut(dataURL, ",")
	if !ok {
		return Image{}, errors.New("invalid data url")
	}
	meta = strings.TrimPrefix(meta, prefix)
	if !strings.HasSuffix(meta, ";base64") {
		return Image{}, errors.New("data url is not base64 encoded")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, fmt.Errorf("decode base64: %w", err)
	}
	return FromBytes(name, strings.TrimSuffix(meta, ";base64"), data)
}

func baseMIME(v string) string {
	v = strings.TrimSpace(v)
	if before, _, ok := strings.Cut(v, ";"); ok {
		v = strings.TrimSpace(before)
	}
	return strings.ToLower(v)
}
