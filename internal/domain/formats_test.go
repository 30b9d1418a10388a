package domain

import (
	"errors"
	"testing"
)

func TestParseDecodeFormat(t *testing.T) {
	t.Parallel()

	cases := map[string]DecodeFormat{
		"QR_CODE":         FormatQRCode,
		" qr ":            FormatQRCode,
		"ean-13":          FormatEAN13,
		"EAN13":           FormatEAN13,
		"Code128":         FormatCode128,
		"interleaved2of5": FormatITF,
		"PDF417":          FormatPDF417,
		"AZTEC":           FormatAztec,
		"":                FormatUnknown,
		"MAXICODE":        FormatUnknown,
		"RSS_EXPANDED":    FormatUnknown,
	}
	for code, want := range cases {
		if got := ParseDecodeFormat(code); got != want {
			t.Fatalf("ParseDecodeFormat(%q)=%s want %s", code, got, want)
		}
	}
}

func TestParseDecodeFormatsDropsUnknownAndDuplicates(t *testing.T) {
	t.Parallel()

	got := ParseDecodeFormats([]string{"qr", "QR_CODE", "bogus", "UPC-A"})
	if len(got) != 2 || got[0] != FormatQRCode || got[1] != FormatUPCA {
		t.Fatalf("unexpected formats %v", got)
	}
}

func TestFormatSet(t *testing.T) {
	t.Parallel()

	all := NewFormatSet()
	if !all.All() || !all.Allows(FormatEAN13) || len(all.List()) != len(SupportedFormats) {
		t.Fatalf("empty set must allow every format")
	}

	qr := NewFormatSet(FormatQRCode)
	if qr.All() || !qr.Allows(FormatQRCode) || qr.Allows(FormatEAN13) {
		t.Fatalf("unexpected membership for QR-only set")
	}

	ordered := NewFormatSet(FormatUPCE, FormatAztec).List()
	if len(ordered) != 2 || ordered[0] != FormatAztec || ordered[1] != FormatUPCE {
		t.Fatalf("expected supported-order list, got %v", ordered)
	}
}

func TestScanRequestFormatSet(t *testing.T) {
	t.Parallel()

	if !(ScanRequest{}).FormatSet().All() {
		t.Fatalf("request without formats must allow all")
	}
	if (ScanRequest{Formats: []DecodeFormat{FormatQRCode}}).FormatSet().Allows(FormatEAN13) {
		t.Fatalf("EAN_13 must be rejected under a QR-only request")
	}
}

func TestNormalizeFormats(t *testing.T) {
	t.Parallel()

	got, err := NormalizeFormats([]DecodeFormat{"qr_code", "QR", " ", "ean-13", "QR_CODE"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != FormatQRCode || got[1] != FormatEAN13 {
		t.Fatalf("unexpected formats %v", got)
	}

	got, err = NormalizeFormats(nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty formats, got %v err %v", got, err)
	}

	if _, err := NormalizeFormats([]DecodeFormat{"qr", "hologram"}); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected unknown format error, got %v", err)
	}
}
