// Package testutil provides shared test utilities and fixtures.
//
// This package centralises synthetic frames and image fixtures so the
// frame, simulator, container and CLI tests exercise the same inputs.
package testutil

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// UniformGray returns a width x height image with every pixel set to v.
func UniformGray(width, height int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

// GradientGray returns an image whose intensity rises linearly from 0 in the
// left column to 255 in the right column.
func GradientGray(width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := uint8(0)
			if width > 1 {
				v = uint8(x * 255 / (width - 1))
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

// SquareGray returns a background image of intensity bg with a size x size
// square of intensity fg whose top-left corner sits at (x0, y0).
func SquareGray(width, height int, bg, fg uint8, x0, y0, size int) *image.Gray {
	img := UniformGray(width, height, bg)
	for y := y0; y < y0+size && y < height; y++ {
		for x := x0; x < x0+size && x < width; x++ {
			img.SetGray(x, y, color.Gray{Y: fg})
		}
	}
	return img
}

// WritePNG encodes img into dir/name and returns the full path.
func WritePNG(t testing.TB, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	return path
}
