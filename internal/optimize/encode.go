package optimize

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/ericpauley/go-quantize/quantize"
)

// encode renders frame at the given quality. JPEG cannot carry alpha, so any
// alpha channel is flattened onto opaque white first; dropping it without
// flattening leaves transparent regions artifacted as black. PNG quality
// drives palette size for median-cut quantization, which preserves sharp
// edges better than blur-based resampling and so keeps text legible.
func encode(frame image.Image, format Format, alpha bool, quality int) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case FormatJPEG:
		if alpha {
			frame = flattenOntoWhite(frame)
		}
		if err := imaging.Encode(&buf, frame, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return nil, fmt.Errorf("jpeg encode at quality %d: %w", quality, err)
		}

	case FormatPNG:
		paletted := quantizeToPalette(frame, paletteSize(quality), alpha)
		encoder := png.Encoder{CompressionLevel: png.BestCompression}
		if err := encoder.Encode(&buf, paletted); err != nil {
			return nil, fmt.Errorf("png encode at quality %d: %w", quality, err)
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	return buf.Bytes(), nil
}

func flattenOntoWhite(frame image.Image) image.Image {
	bounds := frame.Bounds()
	background := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
	return imaging.Overlay(background, frame, image.Point{}, 1.0)
}

// paletteSize maps the PNG quality domain [40,100] onto a palette color
// count, monotonically, clamped to [2,256].
func paletteSize(quality int) int {
	colors := quality * 256 / 100
	if colors < 2 {
		colors = 2
	}
	if colors > 256 {
		colors = 256
	}
	return colors
}

func quantizeToPalette(frame image.Image, colors int, alpha bool) *image.Paletted {
	quantizer := quantize.MedianCutQuantizer{AddTransparent: alpha}
	palette := quantizer.Quantize(make(color.Palette, 0, colors), frame)

	bounds := frame.Bounds()
	paletted := image.NewPaletted(bounds, palette)
	draw.FloydSteinberg.Draw(paletted, bounds, frame, bounds.Min)
	return paletted
}
