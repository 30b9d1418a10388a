package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// DecodeFormat is a barcode symbology agreed with the decoder.
type DecodeFormat string

const (
	FormatUnknown    DecodeFormat = "UNKNOWN"
	FormatAztec      DecodeFormat = "AZTEC"
	FormatCodabar    DecodeFormat = "CODABAR"
	FormatCode39     DecodeFormat = "CODE_39"
	FormatCode93     DecodeFormat = "CODE_93"
	FormatCode128    DecodeFormat = "CODE_128"
	FormatDataMatrix DecodeFormat = "DATA_MATRIX"
	FormatEAN8       DecodeFormat = "EAN_8"
	FormatEAN13      DecodeFormat = "EAN_13"
	FormatITF        DecodeFormat = "ITF"
	FormatPDF417     DecodeFormat = "PDF_417"
	FormatQRCode     DecodeFormat = "QR_CODE"
	FormatUPCA       DecodeFormat = "UPC_A"
	FormatUPCE       DecodeFormat = "UPC_E"
)

// SupportedFormats lists every known symbology, excluding FormatUnknown.
var SupportedFormats = []DecodeFormat{
	FormatAztec,
	FormatCodabar,
	FormatCode39,
	FormatCode93,
	FormatCode128,
	FormatDataMatrix,
	FormatEAN8,
	FormatEAN13,
	FormatITF,
	FormatPDF417,
	FormatQRCode,
	FormatUPCA,
	FormatUPCE,
}

var formatAliases = map[string]DecodeFormat{
	"QR":              FormatQRCode,
	"QRCODE":          FormatQRCode,
	"CODE39":          FormatCode39,
	"CODE93":          FormatCode93,
	"CODE128":         FormatCode128,
	"DATAMATRIX":      FormatDataMatrix,
	"EAN8":            FormatEAN8,
	"EAN13":           FormatEAN13,
	"INTERLEAVED2OF5": FormatITF,
	"PDF417":          FormatPDF417,
	"UPCA":            FormatUPCA,
	"UPCE":            FormatUPCE,
}

// ParseDecodeFormat maps a decoder or host code to a DecodeFormat.
// Unrecognised codes map to FormatUnknown.
func ParseDecodeFormat(code string) DecodeFormat {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	if normalized == "" {
		return FormatUnknown
	}
	if lo.Contains(SupportedFormats, DecodeFormat(normalized)) {
		return DecodeFormat(normalized)
	}
	if alias, ok := formatAliases[strings.ReplaceAll(normalized, "_", "")]; ok {
		return alias
	}
	return FormatUnknown
}

// ParseDecodeFormats parses a list of codes, dropping unknown entries and duplicates.
func ParseDecodeFormats(codes []string) []DecodeFormat {
	parsed := lo.Map(codes, func(code string, _ int) DecodeFormat {
		return ParseDecodeFormat(code)
	})
	parsed = lo.Filter(parsed, func(format DecodeFormat, _ int) bool {
		return format != FormatUnknown
	})
	return lo.Uniq(parsed)
}

// ErrUnknownFormat is returned when a request names a format code that cannot be parsed.
var ErrUnknownFormat = errors.New("unknown barcode format")

// NormalizeFormats maps host-supplied codes such as "qr" or "ean-13" onto canonical
// formats, dropping duplicates. Any unparseable code is an error.
func NormalizeFormats(formats []DecodeFormat) ([]DecodeFormat, error) {
	var unknown []string
	out := make([]DecodeFormat, 0, len(formats))
	for _, format := range formats {
		if strings.TrimSpace(string(format)) == "" {
			continue
		}
		parsed := ParseDecodeFormat(string(format))
		if parsed == FormatUnknown {
			unknown = append(unknown, string(format))
			continue
		}
		out = append(out, parsed)
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, strings.Join(unknown, ", "))
	}
	return lo.Uniq(out), nil
}

// FormatSet is a symbology filter. The empty set allows every format.
type FormatSet struct {
	formats map[DecodeFormat]struct{}
}

func NewFormatSet(formats ...DecodeFormat) FormatSet {
	if len(formats) == 0 {
		return FormatSet{}
	}
	set := FormatSet{formats: make(map[DecodeFormat]struct{}, len(formats))}
	for _, format := range formats {
		set.formats[format] = struct{}{}
	}
	return set
}

// All reports whether the set places no restriction.
func (s FormatSet) All() bool {
	return len(s.formats) == 0
}

// Allows reports whether a detection of the given format may be accepted.
func (s FormatSet) Allows(format DecodeFormat) bool {
	if s.All() {
		return true
	}
	_, ok := s.formats[format]
	return ok
}

// List returns the explicit formats, or SupportedFormats when unrestricted.
func (s FormatSet) List() []DecodeFormat {
	if s.All() {
		return append([]DecodeFormat(nil), SupportedFormats...)
	}
	return lo.Filter(SupportedFormats, func(format DecodeFormat, _ int) bool {
		_, ok := s.formats[format]
		return ok
	})
}
