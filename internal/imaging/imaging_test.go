package imaging

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeTestImage writes a PNG whose left half is red and right half is blue,
// split at the vertical center, so crop geometry is observable in the output.
func writeTestImage(t *testing.T, width, height int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	red := color.RGBA{255, 0, 0, 255}
	blue := color.RGBA{0, 0, 255, 255}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x < width/2 {
				img.Set(x, y, red)
			} else {
				img.Set(x, y, blue)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "src.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestGetDimensions(t *testing.T) {
	path := writeTestImage(t, 640, 480)
	d, err := GetDimensions(path)
	if err != nil {
		t.Fatalf("GetDimensions: %v", err)
	}
	if d.Width != 640 || d.Height != 480 {
		t.Errorf("dimensions = %dx%d, want 640x480", d.Width, d.Height)
	}
}

func TestGetDimensionsMissingFile(t *testing.T) {
	if _, err := GetDimensions(filepath.Join(t.TempDir(), "nope.png")); err == nil {
		t.Error("GetDimensions on missing file succeeded")
	}
}

func TestOptimalQuality(t *testing.T) {
	cases := []struct {
		w, h, target int
		want         float64
	}{
		{400, 400, 800, 0.9},  // upscale, ratio 4
		{800, 800, 800, 0.9},  // exact, ratio 1
		{800, 1600, 800, 0.8}, // ratio 0.5
		{1000, 1000, 800, 0.8},
		{1600, 1200, 800, 0.7}, // ratio 1/3
		{1600, 1600, 800, 0.7}, // ratio 0.25
		{4000, 3000, 800, 0.6},
		{0, 0, 800, 0.9}, // degenerate source
	}
	for _, tc := range cases {
		if got := OptimalQuality(tc.w, tc.h, tc.target); got != tc.want {
			t.Errorf("OptimalQuality(%d, %d, %d) = %v, want %v", tc.w, tc.h, tc.target, got, tc.want)
		}
	}
}

func TestProcessToSquare(t *testing.T) {
	src := writeTestImage(t, 1000, 800)

	res, err := ProcessToSquare(src, Options{TargetSize: 200, Format: FormatPNG})
	if err != nil {
		t.Fatalf("ProcessToSquare: %v", err)
	}
	t.Cleanup(func() { os.Remove(res.Path) })

	if res.OriginalDimensions != (Dimensions{Width: 1000, Height: 800}) {
		t.Errorf("original dims = %+v", res.OriginalDimensions)
	}
	if res.FinalDimensions != (Dimensions{Width: 200, Height: 200}) {
		t.Errorf("final dims = %+v", res.FinalDimensions)
	}
	if res.ProcessingTime <= 0 {
		t.Error("processing time not recorded")
	}

	got, err := GetDimensions(res.Path)
	if err != nil {
		t.Fatalf("GetDimensions(output): %v", err)
	}
	if got.Width != 200 || got.Height != 200 {
		t.Errorf("output = %dx%d, want 200x200", got.Width, got.Height)
	}
}

func TestProcessToSquareCentersCrop(t *testing.T) {
	// 1000x800 source: the crop is the middle 800x800, x in [100, 900).
	// The red/blue split at x=500 lands at the output center, so the
	// centered crop keeps both halves.
	src := writeTestImage(t, 1000, 800)
	res, err := ProcessToSquare(src, Options{TargetSize: 100, Format: FormatPNG})
	if err != nil {
		t.Fatalf("ProcessToSquare: %v", err)
	}
	t.Cleanup(func() { os.Remove(res.Path) })

	f, err := os.Open(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}

	r, _, _, _ := img.At(10, 50).RGBA()
	if r < 0x8000 {
		t.Error("left edge is not red: crop lost the left side")
	}
	_, _, b, _ := img.At(90, 50).RGBA()
	if b < 0x8000 {
		t.Error("right edge is not blue: crop lost the right side")
	}
}

func TestProcessToSquareJPEGOutput(t *testing.T) {
	src := writeTestImage(t, 300, 300)
	res, err := ProcessToSquare(src, Options{TargetSize: 150, Quality: 0.7})
	if err != nil {
		t.Fatalf("ProcessToSquare: %v", err)
	}
	t.Cleanup(func() { os.Remove(res.Path) })

	if filepath.Ext(res.Path) != ".jpg" {
		t.Errorf("output extension = %s, want .jpg", filepath.Ext(res.Path))
	}
	if got, _ := GetDimensions(res.Path); got.Width != 150 || got.Height != 150 {
		t.Errorf("output = %dx%d, want 150x150", got.Width, got.Height)
	}
}

func TestProcessToSquareErrors(t *testing.T) {
	if _, err := ProcessToSquare(filepath.Join(t.TempDir(), "missing.png"), Options{}); err == nil {
		t.Error("missing source succeeded")
	}

	junk := filepath.Join(t.TempDir(), "junk.png")
	if err := os.WriteFile(junk, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ProcessToSquare(junk, Options{}); err == nil {
		t.Error("undecodable source succeeded")
	}
}

func TestValidatePerformance(t *testing.T) {
	cases := []struct {
		elapsed time.Duration
		rating  string
		within  bool
	}{
		{500 * time.Millisecond, "excellent", true},
		{1000 * time.Millisecond, "excellent", true},
		{1001 * time.Millisecond, "good", true},
		{2000 * time.Millisecond, "good", true},
		{2500 * time.Millisecond, "good", true},
		{4000 * time.Millisecond, "acceptable", true},
		{5000 * time.Millisecond, "acceptable", true},
		{6000 * time.Millisecond, "slow", false},
	}
	for _, tc := range cases {
		v := ValidatePerformance(tc.elapsed, 0)
		if v.Rating != tc.rating {
			t.Errorf("ValidatePerformance(%v).Rating = %s, want %s", tc.elapsed, v.Rating, tc.rating)
		}
		if v.WithinRequirement != tc.within {
			t.Errorf("ValidatePerformance(%v).WithinRequirement = %v, want %v", tc.elapsed, v.WithinRequirement, tc.within)
		}
	}

	// Explicit budget overrides the default.
	if v := ValidatePerformance(1500*time.Millisecond, time.Second); v.WithinRequirement {
		t.Error("1500ms passed a 1s budget")
	}
}

func TestEstimateFileSize(t *testing.T) {
	if got := EstimateFileSize(100, 100, 0, FormatPNG); got != 10000*4/1024.0 {
		t.Errorf("PNG estimate = %v", got)
	}
	// The JPEG factor shrinks as quality rises.
	low := EstimateFileSize(800, 800, 0.6, FormatJPEG)
	high := EstimateFileSize(800, 800, 0.9, FormatJPEG)
	if high >= low {
		t.Errorf("estimate at q=0.9 (%v) should be below q=0.6 (%v)", high, low)
	}
}
