package upload

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngHeader is enough for content sniffing.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestFromBytes(t *testing.T) {
	t.Run("sniffs when declared type is generic", func(t *testing.T) {
		img, err := FromBytes("shot.png", "application/octet-stream", pngHeader)
		require.NoError(t, err)
		assert.Equal(t, "image/png", img.MIMEType)
		assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(pngHeader), img.DataURL)
		assert.Equal(t, len(pngHeader), img.Size)
	})

	t.Run("keeps declared image type", func(t *testing.T) {
		img, err := FromBytes("a.webp", "image/webp; charset=binary", []byte("RIFFxxxxWEBP"))
		require.NoError(t, err)
		assert.Equal(t, "image/webp", img.MIMEType)
	})

	t.Run("rejects non images", func(t *testing.T) {
		_, err := FromBytes("notes.txt", "", []byte("hello world"))
		assert.ErrorIs(t, err, ErrNotImage)

		_, err = FromBytes("doc.pdf", "application/pdf", pngHeader)
		assert.ErrorIs(t, err, ErrNotImage)
	})

	t.Run("rejects empty and oversized", func(t *testing.T) {
		_, err := FromBytes("x", "image/png", nil)
		assert.ErrorIs(t, err, ErrEmpty)

		_, err = FromBytes("x", "image/png", bytes.Repeat([]byte{1}, MaxBytes+1))
		assert.ErrorIs(t, err, ErrTooLarge)
	})
}

func TestFromDataURL(t *testing.T) {
	src, err := FromBytes("shot.png", "", pngHeader)
	require.NoError(t, err)

	img, err := FromDataURL("again.png", src.DataURL)
	require.NoError(t, err)
	assert.Equal(t, src.DataURL, img.DataURL)
	assert.Equal(t, "again.png", img.Name)

	raw, err := img.Bytes()
	require.NoError(t, err)
	assert.Equal(t, pngHeader, raw)
	assert.Equal(t, base64.StdEncoding.EncodeToString(pngHeader), img.Payload())

	_, err = FromDataURL("", "not-a-data-url")
	assert.Error(t, err)

	_, err = FromDataURL("", "data:text/plain;base64,"+base64.StdEncoding.EncodeToString([]byte("hi")))
	assert.ErrorIs(t, err, ErrNotImage)
}
