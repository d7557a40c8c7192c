// Package imaging normalizes arbitrary-aspect photos into bounded square
// assets: center crop to the smaller dimension, resize to a fixed target
// resolution, and report elapsed time against the processing budget.
package imaging

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"time"

	_ "image/gif"

	"golang.org/x/image/draw"
)

// Format of the encoded output asset.
type Format string

// Supported output formats.
const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

// Defaults for the normalization pipeline. The fixed 800x800 target keeps
// storage and rendering costs predictable.
const (
	DefaultTargetSize = 800
	DefaultQuality    = 0.8
)

// ProcessingBudget is the advisory upper bound for one normalization run.
const ProcessingBudget = 5000 * time.Millisecond

// Dimensions is a pixel width/height pair.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Options tune a normalization run. Zero values fall back to the defaults.
type Options struct {
	TargetSize int
	Quality    float64
	Format     Format
}

func (o Options) withDefaults() Options {
	if o.TargetSize <= 0 {
		o.TargetSize = DefaultTargetSize
	}
	if o.Quality <= 0 {
		o.Quality = DefaultQuality
	}
	if o.Format == "" {
		o.Format = FormatJPEG
	}
	return o
}

// Result describes one completed normalization run.
type Result struct {
	Path               string        `json:"path"`
	ProcessingTime     time.Duration `json:"processing_time_ms"`
	OriginalDimensions Dimensions    `json:"original_dimensions"`
	FinalDimensions    Dimensions    `json:"final_dimensions"`
}

// GetDimensions reports the native pixel dimensions of the image at path.
func GetDimensions(path string) (Dimensions, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dimensions{}, fmt.Errorf("imaging: open %s: %w", path, err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return Dimensions{}, fmt.Errorf("imaging: decode config %s: %w", path, err)
	}
	return Dimensions{Width: cfg.Width, Height: cfg.Height}, nil
}

// OptimalQuality picks a quality factor from the ratio of target pixel area to
// source pixel area. The step function trades fidelity for processing speed on
// larger sources: upscales keep 0.9, extreme downscales drop to 0.6.
func OptimalQuality(originalWidth, originalHeight, targetSize int) float64 {
	if targetSize <= 0 {
		targetSize = DefaultTargetSize
	}
	originalPixels := float64(originalWidth) * float64(originalHeight)
	targetPixels := float64(targetSize) * float64(targetSize)
	if originalPixels <= 0 {
		return 0.9
	}

	ratio := targetPixels / originalPixels
	switch {
	case ratio >= 1:
		return 0.9
	case ratio >= 0.5:
		return 0.8
	case ratio >= 0.25:
		return 0.7
	default:
		return 0.6
	}
}

// ProcessToSquare crops the source image to a centered square of its smaller
// dimension, resizes it to the target resolution, and encodes the result to a
// new temporary file. On failure the elapsed time is embedded in the error and
// no partial result is returned.
func ProcessToSquare(srcPath string, opts Options) (*Result, error) {
	start := time.Now()
	opts = opts.withDefaults()

	result, err := processToSquare(srcPath, opts)
	if err != nil {
		return nil, fmt.Errorf("imaging: processing failed after %dms: %w",
			time.Since(start).Milliseconds(), err)
	}
	result.ProcessingTime = time.Since(start)
	return result, nil
}

func processToSquare(srcPath string, opts Options) (*Result, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", srcPath, err)
	}
	src, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", srcPath, err)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	// Centered square crop: size = min(w, h), origin ((w-size)/2, (h-size)/2).
	size := width
	if height < size {
		size = height
	}
	originX := bounds.Min.X + (width-size)/2
	originY := bounds.Min.Y + (height-size)/2
	cropRect := image.Rect(originX, originY, originX+size, originY+size)

	dst := image.NewRGBA(image.Rect(0, 0, opts.TargetSize, opts.TargetSize))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, cropRect, draw.Src, nil)

	out, err := os.CreateTemp("", "dagaz-photo-*"+extension(opts.Format))
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	if err := encode(out, dst, opts); err != nil {
		out.Close()
		os.Remove(out.Name())
		return nil, fmt.Errorf("encode: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return nil, fmt.Errorf("close output: %w", err)
	}

	return &Result{
		Path:               out.Name(),
		OriginalDimensions: Dimensions{Width: width, Height: height},
		FinalDimensions:    Dimensions{Width: opts.TargetSize, Height: opts.TargetSize},
	}, nil
}

func encode(out *os.File, img image.Image, opts Options) error {
	switch opts.Format {
	case FormatPNG:
		return png.Encode(out, img)
	default:
		quality := int(opts.Quality * 100)
		if quality < 1 {
			quality = 1
		}
		if quality > 100 {
			quality = 100
		}
		return jpeg.Encode(out, img, &jpeg.Options{Quality: quality})
	}
}

func extension(f Format) string {
	if f == FormatPNG {
		return ".png"
	}
	return ".jpg"
}

// Verdict classifies a processing run against the time budget.
type Verdict struct {
	WithinRequirement bool   `json:"within_requirement"`
	Rating            string `json:"rating"`
	Message           string `json:"message"`
}

// ValidatePerformance classifies elapsed time into four bands with inclusive
// boundaries, and separately reports pass/fail against maxAllowed (0 means the
// default 5 second budget).
func ValidatePerformance(processingTime, maxAllowed time.Duration) Verdict {
	if maxAllowed <= 0 {
		maxAllowed = ProcessingBudget
	}
	ms := processingTime.Milliseconds()

	var rating string
	switch {
	case ms <= 1000:
		rating = "excellent"
	case ms <= 2500:
		rating = "good"
	case ms <= 5000:
		rating = "acceptable"
	default:
		rating = "slow"
	}

	return Verdict{
		WithinRequirement: processingTime <= maxAllowed,
		Rating:            rating,
		Message:           fmt.Sprintf("%s: processed in %dms", rating, ms),
	}
}

// EstimateFileSize approximates the encoded size in kilobytes. PNG counts 4
// bytes per pixel; JPEG counts 3 bytes per pixel scaled by (1 - quality + 0.1).
// Display-only, never used for correctness.
func EstimateFileSize(width, height int, quality float64, format Format) float64 {
	pixels := float64(width) * float64(height)
	if format == FormatPNG {
		return pixels * 4 / 1024
	}
	return pixels * 3 / 1024 * (1 - quality + 0.1)
}
