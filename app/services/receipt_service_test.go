// Package services provides external service integrations and technical concerns like notifications and tokens
package services

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTestImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	return img
}

func makeJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, makeTestImage(width, height), &jpeg.Options{Quality: 80}))
	return buf.Bytes()
}

func makePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, makeTestImage(width, height)))
	return buf.Bytes()
}

func TestNormalizeJPEG(t *testing.T) {
	n := NewReceiptNormalizer()

	out, err := n.Normalize("receipt.jpg", makeJPEG(t, 400, 300))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")), "output must be a PDF document")
}

func TestNormalizePNG(t *testing.T) {
	n := NewReceiptNormalizer()

	out, err := n.Normalize("receipt.png", makePNG(t, 300, 400))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestNormalizeTallImage(t *testing.T) {
	n := NewReceiptNormalizer()

	// Extreme aspect ratios still fit on one page
	out, err := n.Normalize("strip.jpg", makeJPEG(t, 100, 2000))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestNormalizePDFPassThrough(t *testing.T) {
	n := NewReceiptNormalizer()
	pdf := []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

	out, err := n.Normalize("receipt.pdf", pdf)
	require.NoError(t, err)
	assert.Equal(t, pdf, out, "PDF uploads must pass through unchanged")
}

func TestNormalizeRejectsText(t *testing.T) {
	n := NewReceiptNormalizer()

	out, err := n.Normalize("receipt.txt", []byte("amount: 120.00 paid in cash"))
	assert.ErrorIs(t, err, ErrUnsupportedReceipt)
	assert.Nil(t, out)
}

func TestNormalizeRejectsEmpty(t *testing.T) {
	n := NewReceiptNormalizer()

	out, err := n.Normalize("receipt.jpg", nil)
	assert.ErrorIs(t, err, ErrEmptyReceipt)
	assert.Nil(t, out)
}

func TestNormalizeIgnoresMisleadingExtension(t *testing.T) {
	n := NewReceiptNormalizer()

	// Detection is by content, not filename
	out, err := n.Normalize("receipt.pdf", makeJPEG(t, 200, 200))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	_, err = n.Normalize("receipt.jpg", []byte("plain text pretending to be an image"))
	assert.ErrorIs(t, err, ErrUnsupportedReceipt)
}
