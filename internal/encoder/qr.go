package encoder

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"

	"barcodescan/internal/domain"
	"barcodescan/internal/logger"
	"barcodescan/internal/ports"
)

var ErrEmptyText = errors.New("text to encode is empty")

const maxSize = 4096

// QRWriter renders text as a QR code PNG file.
type QRWriter struct {
	dir         string
	defaultSize int
}

func NewQRWriter(dir string, defaultSize int) *QRWriter {
	if dir == "" {
		dir = os.TempDir()
	}
	if defaultSize <= 0 {
		defaultSize = 256
	}
	return &QRWriter{dir: dir, defaultSize: defaultSize}
}

func (w *QRWriter) Encode(ctx context.Context, text string, size int) (domain.EncodeResult, error) {
	if strings.TrimSpace(text) == "" {
		return domain.EncodeResult{}, ErrEmptyText
	}
	if size <= 0 {
		size = w.defaultSize
	}
	if size > maxSize {
		return domain.EncodeResult{}, fmt.Errorf("size %d exceeds %d pixels", size, maxSize)
	}
	if err := ctx.Err(); err != nil {
		return domain.EncodeResult{}, err
	}

	hints := map[gozxing.EncodeHintType]interface{}{
		gozxing.EncodeHintType_CHARACTER_SET: "UTF-8",
	}
	matrix, err := qrcode.NewQRCodeWriter().Encode(text, gozxing.BarcodeFormat_QR_CODE, size, size, hints)
	if err != nil {
		return domain.EncodeResult{}, fmt.Errorf("failed to encode QR code: %w", err)
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return domain.EncodeResult{}, fmt.Errorf("failed to create output dir: %w", err)
	}
	path := filepath.Join(w.dir, "qr-"+uuid.NewString()+".png")
	file, err := os.Create(path)
	if err != nil {
		return domain.EncodeResult{}, fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := png.Encode(file, matrix); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return domain.EncodeResult{}, fmt.Errorf("failed to write png: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return domain.EncodeResult{}, fmt.Errorf("failed to write png: %w", err)
	}

	logger.Log.Info("qr code written",
		slog.String("component", "encoder"),
		slog.String("path", path),
		slog.Int("size", size))
	return domain.EncodeResult{FilePath: path, Format: "png"}, nil
}

var _ ports.QREncoder = (*QRWriter)(nil)
