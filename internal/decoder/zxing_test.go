package decoder

import (
	"context"
	"errors"
	"image"
	"image/draw"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"

	"barcodescan/internal/domain"
	"barcodescan/internal/ports"
)

func grayFrame(t *testing.T, img image.Image) ports.Frame {
	t.Helper()
	gray := image.NewGray(img.Bounds())
	draw.Draw(gray, gray.Bounds(), img, img.Bounds().Min, draw.Src)
	return ports.Frame{
		Data:        gray.Pix,
		Width:       gray.Rect.Dx(),
		Height:      gray.Rect.Dy(),
		Stride:      gray.Stride,
		PixelFormat: ports.PixelFormatGray8,
		Seq:         1,
	}
}

func qrFrame(t *testing.T, text string) ports.Frame {
	t.Helper()
	matrix, err := qrcode.NewQRCodeWriter().Encode(text, gozxing.BarcodeFormat_QR_CODE, 200, 200, nil)
	if err != nil {
		t.Fatalf("encode qr: %v", err)
	}
	return grayFrame(t, matrix)
}

func ean13Frame(t *testing.T, digits string) ports.Frame {
	t.Helper()
	matrix, err := oned.NewEAN13Writer().Encode(digits, gozxing.BarcodeFormat_EAN_13, 300, 120, nil)
	if err != nil {
		t.Fatalf("encode ean13: %v", err)
	}
	return grayFrame(t, matrix)
}

func TestZXingDecoderDecodesQRCode(t *testing.T) {
	t.Parallel()

	d := NewZXingDecoder(false)
	detection, found, err := d.TryDecode(context.Background(), qrFrame(t, "hello-scanner"), domain.NewFormatSet(domain.FormatQRCode))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !found || detection.Text != "hello-scanner" || detection.Format != domain.FormatQRCode {
		t.Fatalf("unexpected detection: found=%t %+v", found, detection)
	}
}

func TestZXingDecoderDecodesEAN13WithAllFormats(t *testing.T) {
	t.Parallel()

	d := NewZXingDecoder(true)
	detection, found, err := d.TryDecode(context.Background(), ean13Frame(t, "4006381333931"), domain.NewFormatSet())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !found || detection.Text != "4006381333931" || detection.Format != domain.FormatEAN13 {
		t.Fatalf("unexpected detection: found=%t %+v", found, detection)
	}
}

func TestZXingDecoderSkipsUnrequestedFormats(t *testing.T) {
	t.Parallel()

	d := NewZXingDecoder(false)
	_, found, err := d.TryDecode(context.Background(), ean13Frame(t, "4006381333931"), domain.NewFormatSet(domain.FormatQRCode))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if found {
		t.Fatalf("EAN-13 must not be reported when only QR is requested")
	}
}

func TestZXingDecoderBlankFrameIsMiss(t *testing.T) {
	t.Parallel()

	frame := ports.Frame{Data: make([]byte, 64*64), Width: 64, Height: 64, PixelFormat: ports.PixelFormatGray8}
	for i := range frame.Data {
		frame.Data[i] = 255
	}
	_, found, err := NewZXingDecoder(true).TryDecode(context.Background(), frame, domain.NewFormatSet())
	if err != nil || found {
		t.Fatalf("expected miss, got found=%t err=%v", found, err)
	}
}

func TestZXingDecoderRejectsShortFrame(t *testing.T) {
	t.Parallel()

	frame := ports.Frame{Data: make([]byte, 10), Width: 64, Height: 64, PixelFormat: ports.PixelFormatGray8}
	_, _, err := NewZXingDecoder(false).TryDecode(context.Background(), frame, domain.NewFormatSet())
	if !errors.Is(err, ErrInvalidFrame) {
		t.Fatalf("expected ErrInvalidFrame, got %v", err)
	}
}

func TestZXingDecoderHonoursContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, found, err := NewZXingDecoder(false).TryDecode(ctx, qrFrame(t, "x"), domain.NewFormatSet(domain.FormatQRCode))
	if !errors.Is(err, context.Canceled) || found {
		t.Fatalf("expected cancellation, got found=%t err=%v", found, err)
	}
}

func TestSupportedFormatsHaveReaders(t *testing.T) {
	t.Parallel()

	formats := SupportedFormats()
	if len(formats) != len(readers) {
		t.Fatalf("expected %d formats, got %d", len(readers), len(formats))
	}
	for _, f := range formats {
		if f == domain.FormatPDF417 || f == domain.FormatAztec {
			t.Fatalf("unexpected reader for %s", f)
		}
	}
}

func TestLuminanceConvertsPixelFormats(t *testing.T) {
	t.Parallel()

	rgba := ports.Frame{Data: []byte{255, 0, 0, 255, 0, 0, 255, 255}, Width: 2, Height: 1, PixelFormat: ports.PixelFormatRGBA}
	bgra := rgba
	bgra.PixelFormat = ports.PixelFormatBGRA

	fromRGBA, err := luminance(rgba)
	if err != nil {
		t.Fatalf("rgba: %v", err)
	}
	fromBGRA, err := luminance(bgra)
	if err != nil {
		t.Fatalf("bgra: %v", err)
	}
	if fromRGBA.Pix[0] != 76 || fromRGBA.Pix[1] != 29 {
		t.Fatalf("unexpected rgba luminance: %v", fromRGBA.Pix)
	}
	if fromBGRA.Pix[0] != 29 || fromBGRA.Pix[1] != 76 {
		t.Fatalf("unexpected bgra luminance: %v", fromBGRA.Pix)
	}

	nv21 := ports.Frame{Data: []byte{10, 20, 30, 40, 128, 128}, Width: 2, Height: 2, PixelFormat: ports.PixelFormatNV21}
	fromNV21, err := luminance(nv21)
	if err != nil {
		t.Fatalf("nv21: %v", err)
	}
	if string(fromNV21.Pix) != string([]byte{10, 20, 30, 40}) {
		t.Fatalf("unexpected nv21 luma: %v", fromNV21.Pix)
	}

	if _, err := luminance(ports.Frame{Data: []byte{1}, Width: 1, Height: 1, PixelFormat: "yuyv"}); !errors.Is(err, ErrInvalidFrame) {
		t.Fatalf("expected unknown pixel format error, got %v", err)
	}
}

func TestRotateClockwise(t *testing.T) {
	t.Parallel()

	// 1 2 3
	// 4 5 6
	src := image.NewGray(image.Rect(0, 0, 3, 2))
	copy(src.Pix, []byte{1, 2, 3, 4, 5, 6})

	cases := []struct {
		rotation domain.Rotation
		w, h     int
		want     []byte
	}{
		{domain.Rotation0, 3, 2, []byte{1, 2, 3, 4, 5, 6}},
		{domain.Rotation90, 2, 3, []byte{4, 1, 5, 2, 6, 3}},
		{domain.Rotation180, 3, 2, []byte{6, 5, 4, 3, 2, 1}},
		{domain.Rotation270, 2, 3, []byte{3, 6, 2, 5, 1, 4}},
	}
	for _, tc := range cases {
		got := rotate(src, tc.rotation)
		if got.Rect.Dx() != tc.w || got.Rect.Dy() != tc.h || string(got.Pix) != string(tc.want) {
			t.Fatalf("rotate %d: got %dx%d %v, want %dx%d %v", tc.rotation, got.Rect.Dx(), got.Rect.Dy(), got.Pix, tc.w, tc.h, tc.want)
		}
	}
}
