package decoder

import (
	"errors"
	"fmt"
	"image"

	"barcodescan/internal/domain"
	"barcodescan/internal/ports"
)

var ErrInvalidFrame = errors.New("invalid frame")

func luminance(frame ports.Frame) (*image.Gray, error) {
	if frame.Width <= 0 || frame.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidFrame, frame.Width, frame.Height)
	}

	bpp := 1
	switch frame.PixelFormat {
	case ports.PixelFormatGray8, ports.PixelFormatNV21, "":
	case ports.PixelFormatRGBA, ports.PixelFormatBGRA:
		bpp = 4
	default:
		return nil, fmt.Errorf("%w: pixel format %q", ErrInvalidFrame, frame.PixelFormat)
	}

	stride := frame.Stride
	if stride <= 0 {
		stride = frame.Width * bpp
	}
	if stride < frame.Width*bpp || len(frame.Data) < stride*(frame.Height-1)+frame.Width*bpp {
		return nil, fmt.Errorf("%w: %d bytes for %dx%d stride %d", ErrInvalidFrame, len(frame.Data), frame.Width, frame.Height, stride)
	}

	gray := image.NewGray(image.Rect(0, 0, frame.Width, frame.Height))
	for y := 0; y < frame.Height; y++ {
		row := frame.Data[y*stride:]
		dst := gray.Pix[y*gray.Stride : y*gray.Stride+frame.Width]
		if bpp == 1 {
			// NV21 starts with a full-resolution Y plane.
			copy(dst, row[:frame.Width])
			continue
		}
		for x := 0; x < frame.Width; x++ {
			px := row[x*4 : x*4+4]
			r, g, b := px[0], px[1], px[2]
			if frame.PixelFormat == ports.PixelFormatBGRA {
				r, b = b, r
			}
			dst[x] = uint8((299*uint32(r) + 587*uint32(g) + 114*uint32(b)) / 1000)
		}
	}
	return gray, nil
}

// rotate turns src clockwise by the given rotation.
func rotate(src *image.Gray, rotation domain.Rotation) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	switch rotation {
	case domain.Rotation90:
		dst := image.NewGray(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.Pix[x*dst.Stride+(h-1-y)] = src.Pix[y*src.Stride+x]
			}
		}
		return dst
	case domain.Rotation180:
		dst := image.NewGray(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.Pix[(h-1-y)*dst.Stride+(w-1-x)] = src.Pix[y*src.Stride+x]
			}
		}
		return dst
	case domain.Rotation270:
		dst := image.NewGray(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.Pix[(w-1-x)*dst.Stride+y] = src.Pix[y*src.Stride+x]
			}
		}
		return dst
	default:
		return src
	}
}
