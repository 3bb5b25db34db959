// Package optimize re-encodes images to fit a byte budget. Quality reduction
// at full resolution is the first-line lever; resolution reduction is a last
// resort, applied in small geometric steps. Text-heavy screenshots lose
// legibility under aggressive downscaling long before they do under quality
// reduction.
package optimize

import (
	"bytes"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

const (
	scaleFloor  = 0.55
	scaleFactor = 0.95

	jpegQualityMin = 55
	jpegQualityMax = 95
	pngQualityMin  = 40
	pngQualityMax  = 100

	// maxProbes bounds the binary search per scale. The widest quality
	// domain converges to single-integer precision well within this.
	maxProbes = 9

	fallbackJPEGQuality = 60
	fallbackPNGQuality  = 70
)

// Optimizer searches scale/quality space for the largest, highest-quality
// encoding that fits a byte budget.
type Optimizer struct {
	logger *zap.Logger
}

// New creates an Optimizer. logger may be nil.
func New(logger *zap.Logger) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimizer{logger: logger}
}

// Optimize re-encodes src into format, targeting at most targetBytesMax
// encoded bytes. If no scale/quality combination fits, a fallback asset is
// produced at the scale floor with a fixed conservative quality and accepted
// over budget so a batch never stalls on one pathological image.
func (o *Optimizer) Optimize(src []byte, format Format, targetBytesMax int) (*Asset, error) {
	if format != FormatJPEG && format != FormatPNG {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if targetBytesMax <= 0 {
		return nil, fmt.Errorf("target byte budget must be positive, got %d", targetBytesMax)
	}

	img, srcFormat, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: source dimensions unrecoverable: %v", ErrOptimizationFailed, err)
	}

	bounds := img.Bounds()
	origW, origH := bounds.Dx(), bounds.Dy()
	alpha := hasAlpha(img)

	o.logger.Debug("optimize.start",
		zap.String("source_format", srcFormat),
		zap.String("output_format", string(format)),
		zap.Int("width", origW),
		zap.Int("height", origH),
		zap.Bool("alpha", alpha),
		zap.Int("target_bytes_max", targetBytesMax),
	)

	probes := 0
	for _, scale := range scaleSteps() {
		w := max(1, int(math.Round(float64(origW)*scale)))
		h := max(1, int(math.Round(float64(origH)*scale)))

		frame := img
		if scale != 1.0 {
			frame = imaging.Resize(img, w, h, imaging.Lanczos)
		}

		asset, used := o.searchQuality(frame, format, alpha, targetBytesMax)
		probes += used
		if asset != nil {
			asset.Width = w
			asset.Height = h
			asset.Scale = scale
			asset.Probes = probes
			o.logger.Info("optimize.result_fit",
				zap.Float64("scale", scale),
				zap.Int("quality", asset.Quality),
				zap.Int("byte_size", asset.ByteSize()),
				zap.Int("probes", probes),
			)
			return asset, nil
		}
	}

	// Nothing fit. Render once at the floor with a conservative fixed
	// quality and accept the result even over budget.
	w := max(1, int(math.Round(float64(origW)*scaleFloor)))
	h := max(1, int(math.Round(float64(origH)*scaleFloor)))
	frame := imaging.Resize(img, w, h, imaging.Lanczos)

	quality := fallbackJPEGQuality
	if format == FormatPNG {
		quality = fallbackPNGQuality
	}
	data, err := encode(frame, format, alpha, quality)
	if err != nil {
		return nil, fmt.Errorf("fallback encode: %w", err)
	}
	probes++

	o.logger.Warn("optimize.result_fallback_over_target",
		zap.Int("byte_size", len(data)),
		zap.Int("target_bytes_max", targetBytesMax),
		zap.Int("quality", quality),
		zap.Float64("scale", scaleFloor),
	)

	return &Asset{
		Format:   format,
		Width:    w,
		Height:   h,
		Scale:    scaleFloor,
		Quality:  quality,
		Bytes:    data,
		Probes:   probes,
		Fallback: true,
	}, nil
}

// searchQuality binary-searches for the highest integer quality whose encode
// fits the budget at the given frame size. Returns nil if none fits, along
// with the number of encoder renders spent.
func (o *Optimizer) searchQuality(frame image.Image, format Format, alpha bool, targetBytesMax int) (*Asset, int) {
	lo, hi := jpegQualityMin, jpegQualityMax
	if format == FormatPNG {
		lo, hi = pngQualityMin, pngQualityMax
	}

	var best *Asset
	probes := 0
	for iter := 0; iter < maxProbes && lo <= hi; iter++ {
		quality := (lo + hi) / 2
		data, err := encode(frame, format, alpha, quality)
		if err != nil {
			o.logger.Warn("optimize.probe_failed", zap.Int("quality", quality), zap.Error(err))
			return nil, probes
		}
		probes++

		if len(data) <= targetBytesMax {
			best = &Asset{Format: format, Quality: quality, Bytes: data}
			lo = quality + 1
		} else {
			hi = quality - 1
		}
	}
	return best, probes
}

// scaleSteps returns the geometric scale sequence 1.0, 0.95, 0.95², … down
// to the floor, each rounded to 3 decimal places.
func scaleSteps() []float64 {
	var steps []float64
	for s := 1.0; ; s *= scaleFactor {
		rounded := math.Round(s*1000) / 1000
		if rounded < scaleFloor {
			break
		}
		steps = append(steps, rounded)
	}
	return steps
}

func hasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	// Unknown pixel format: assume the worst so JPEG output still flattens.
	return true
}
