// Package services provides external service integrations and technical concerns like notifications and tokens
package services

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/image/webp"
)

// Receipt normalization error constants
var (
	ErrEmptyReceipt       = errors.New("receipt content is empty")
	ErrUnsupportedReceipt = errors.New("unsupported receipt format")
)

// ReceiptNormalizer converts uploaded receipt files into the canonical PDF form.
// Image uploads (jpeg, png, webp) are embedded into a fresh single-page PDF;
// PDF uploads pass through unchanged. Everything else is rejected.
type ReceiptNormalizer interface {
	Normalize(filename string, content []byte) ([]byte, error)
}

// ReceiptNormalizerImpl implements ReceiptNormalizer
type ReceiptNormalizerImpl struct{}

// NewReceiptNormalizer creates a new receipt normalizer
func NewReceiptNormalizer() ReceiptNormalizer {
	return &ReceiptNormalizerImpl{}
}

// A4 content box in millimeters after margins
const (
	pageWidthMM  = 190.0
	pageHeightMM = 277.0
)

// Normalize returns PDF bytes for the uploaded receipt or ErrUnsupportedReceipt.
// Detection relies on content sniffing, not the filename extension.
func (n *ReceiptNormalizerImpl) Normalize(filename string, content []byte) ([]byte, error) {
	if len(content) == 0 {
		return nil, ErrEmptyReceipt
	}

	contentType := http.DetectContentType(content)
	switch {
	case contentType == "application/pdf":
		return content, nil
	case contentType == "image/jpeg":
		return n.imageToPDF(content, "JPG")
	case contentType == "image/png":
		return n.imageToPDF(content, "PNG")
	case contentType == "image/webp" || strings.HasSuffix(strings.ToLower(filename), ".webp"):
		jpegBytes, err := webpToJPEG(content)
		if err != nil {
			return nil, err
		}
		return n.imageToPDF(jpegBytes, "JPG")
	default:
		return nil, fmt.Errorf("%w: detected %s", ErrUnsupportedReceipt, contentType)
	}
}

// imageToPDF embeds the image on a single A4 page, scaled to fit and centered
func (n *ReceiptNormalizerImpl) imageToPDF(content []byte, imageType string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	opts := gofpdf.ImageOptions{ImageType: imageType, ReadDpi: false}
	info := pdf.RegisterImageOptionsReader("receipt", opts, bytes.NewReader(content))
	if pdf.Err() {
		return nil, fmt.Errorf("failed to register receipt image: %s", pdf.Error())
	}

	imgW, imgH := info.Extent()
	if imgW <= 0 || imgH <= 0 {
		return nil, fmt.Errorf("receipt image has invalid dimensions")
	}

	scale := pageWidthMM / imgW
	if imgH*scale > pageHeightMM {
		scale = pageHeightMM / imgH
	}
	w := imgW * scale
	h := imgH * scale
	x := (210.0 - w) / 2
	y := (297.0 - h) / 2

	pdf.ImageOptions("receipt", x, y, w, h, false, opts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render receipt PDF: %w", err)
	}

	return buf.Bytes(), nil
}

// webpToJPEG decodes a webp image and re-encodes it as JPEG for PDF embedding
func webpToJPEG(content []byte) ([]byte, error) {
	img, err := webp.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: webp decode failed: %v", ErrUnsupportedReceipt, err)
	}
	return encodeJPEG(img)
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode image as jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
