package decoder

import (
	"context"
	"fmt"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/datamatrix"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/samber/lo"

	"barcodescan/internal/domain"
	"barcodescan/internal/ports"
)

type readerFactory func() gozxing.Reader

var readers = map[domain.DecodeFormat]readerFactory{
	domain.FormatQRCode:     func() gozxing.Reader { return qrcode.NewQRCodeReader() },
	domain.FormatDataMatrix: func() gozxing.Reader { return datamatrix.NewDataMatrixReader() },
	domain.FormatEAN13:      func() gozxing.Reader { return oned.NewEAN13Reader() },
	domain.FormatEAN8:       func() gozxing.Reader { return oned.NewEAN8Reader() },
	domain.FormatUPCA:       func() gozxing.Reader { return oned.NewUPCAReader() },
	domain.FormatUPCE:       func() gozxing.Reader { return oned.NewUPCEReader() },
	domain.FormatCode128:    func() gozxing.Reader { return oned.NewCode128Reader() },
	domain.FormatCode39:     func() gozxing.Reader { return oned.NewCode39Reader() },
	domain.FormatCode93:     func() gozxing.Reader { return oned.NewCode93Reader() },
	domain.FormatITF:        func() gozxing.Reader { return oned.NewITFReader() },
	domain.FormatCodabar:    func() gozxing.Reader { return oned.NewCodaBarReader() },
}

var formatsByZXing = map[gozxing.BarcodeFormat]domain.DecodeFormat{
	gozxing.BarcodeFormat_QR_CODE:     domain.FormatQRCode,
	gozxing.BarcodeFormat_DATA_MATRIX: domain.FormatDataMatrix,
	gozxing.BarcodeFormat_EAN_13:      domain.FormatEAN13,
	gozxing.BarcodeFormat_EAN_8:       domain.FormatEAN8,
	gozxing.BarcodeFormat_UPC_A:       domain.FormatUPCA,
	gozxing.BarcodeFormat_UPC_E:       domain.FormatUPCE,
	gozxing.BarcodeFormat_CODE_128:    domain.FormatCode128,
	gozxing.BarcodeFormat_CODE_39:     domain.FormatCode39,
	gozxing.BarcodeFormat_CODE_93:     domain.FormatCode93,
	gozxing.BarcodeFormat_ITF:         domain.FormatITF,
	gozxing.BarcodeFormat_CODABAR:     domain.FormatCodabar,
	gozxing.BarcodeFormat_AZTEC:       domain.FormatAztec,
	gozxing.BarcodeFormat_PDF_417:     domain.FormatPDF417,
}

// ZXingDecoder decodes frames in-process with gozxing.
type ZXingDecoder struct {
	tryHarder bool
}

func NewZXingDecoder(tryHarder bool) *ZXingDecoder {
	return &ZXingDecoder{tryHarder: tryHarder}
}

// SupportedFormats lists the formats this decoder has readers for.
func SupportedFormats() []domain.DecodeFormat {
	return lo.Filter(domain.SupportedFormats, func(f domain.DecodeFormat, _ int) bool {
		_, ok := readers[f]
		return ok
	})
}

// TryDecode reports found=false when no barcode of an allowed format is present.
// Requested formats without a reader are skipped.
func (d *ZXingDecoder) TryDecode(ctx context.Context, frame ports.Frame, allowed domain.FormatSet) (domain.Detection, bool, error) {
	img, err := FrameImage(frame)
	if err != nil {
		return domain.Detection{}, false, err
	}
	bitmap, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return domain.Detection{}, false, fmt.Errorf("binarize frame %d: %w", frame.Seq, err)
	}

	hints := map[gozxing.DecodeHintType]interface{}{}
	if !allowed.All() {
		hints[gozxing.DecodeHintType_POSSIBLE_FORMATS] = zxingFormats(allowed)
	}
	if d.tryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}

	for _, format := range allowed.List() {
		if err := ctx.Err(); err != nil {
			return domain.Detection{}, false, err
		}
		factory, ok := readers[format]
		if !ok {
			continue
		}
		result, err := factory().Decode(bitmap, hints)
		if err != nil || result == nil {
			continue
		}
		decoded, ok := formatsByZXing[result.GetBarcodeFormat()]
		if !ok {
			continue
		}
		return domain.Detection{Text: result.GetText(), Format: decoded}, true, nil
	}
	return domain.Detection{}, false, nil
}

func zxingFormats(allowed domain.FormatSet) []gozxing.BarcodeFormat {
	var out []gozxing.BarcodeFormat
	for zx, format := range formatsByZXing {
		if allowed.Allows(format) {
			out = append(out, zx)
		}
	}
	return out
}

var _ ports.Decoder = (*ZXingDecoder)(nil)

// FrameImage converts a camera frame into an upright grayscale image.
func FrameImage(frame ports.Frame) (*image.Gray, error) {
	gray, err := luminance(frame)
	if err != nil {
		return nil, err
	}
	return rotate(gray, frame.Rotation), nil
}
