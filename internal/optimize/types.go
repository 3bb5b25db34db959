package optimize

import (
	"errors"
	"fmt"
	"strings"
)

// Format is an output encoding the optimizer can produce.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

var (
	// ErrUnsupportedFormat is returned when the output hint is neither JPEG
	// nor PNG.
	ErrUnsupportedFormat = errors.New("unsupported output format")

	// ErrOptimizationFailed is returned when the source image cannot be
	// decoded, leaving no dimensions to work with.
	ErrOptimizationFailed = errors.New("optimization failed")
)

// ParseFormat maps an output hint (format name or file extension) to a
// Format. The hint may carry a leading dot.
func ParseFormat(hint string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(hint, ".")) {
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, hint)
	}
}

// Ext returns the file extension for the format, with leading dot.
func (f Format) Ext() string {
	if f == FormatJPEG {
		return ".jpg"
	}
	return ".png"
}

// Asset is one encoded optimizer output. Immutable once produced.
type Asset struct {
	Format  Format
	Width   int
	Height  int
	Scale   float64
	Quality int
	Bytes   []byte

	// Probes counts encoder renders spent finding this asset.
	Probes int

	// Fallback marks an asset accepted despite exceeding the byte budget,
	// produced only when no scale/quality combination fit.
	Fallback bool
}

// ByteSize returns the encoded size in bytes.
func (a *Asset) ByteSize() int {
	return len(a.Bytes)
}
