// Package frame holds 8-bit grayscale video frames and decodes them from
// image files.
package frame

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/banshee-data/dvsim/internal/fsutil"
)

// ErrSizeMismatch is returned when frames of one sequence differ in size.
var ErrSizeMismatch = errors.New("frame size mismatch")

// Frame is a row-major 8-bit grayscale image. Pix[y*Width+x] is the
// intensity of the pixel in column x and row y.
type Frame struct {
	Width  int
	Height int
	Pix    []uint8
}

// New allocates a black frame.
func New(width, height int) *Frame {
	return &Frame{Width: width, Height: height, Pix: make([]uint8, width*height)}
}

// At returns the intensity at (x, y).
func (f *Frame) At(x, y int) uint8 {
	return f.Pix[y*f.Width+x]
}

// Set writes the intensity at (x, y).
func (f *Frame) Set(x, y int, v uint8) {
	f.Pix[y*f.Width+x] = v
}

// SameSize reports whether f and o have identical dimensions.
func (f *Frame) SameSize(o *Frame) bool {
	return f.Width == o.Width && f.Height == o.Height
}

// Validate checks the pixel buffer against the declared dimensions.
func (f *Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("invalid frame dimensions %dx%d", f.Width, f.Height)
	}
	if len(f.Pix) != f.Width*f.Height {
		return fmt.Errorf("frame buffer holds %d pixels, want %d", len(f.Pix), f.Width*f.Height)
	}
	return nil
}

// Gray returns f as an *image.Gray sharing the pixel buffer.
func (f *Frame) Gray() *image.Gray {
	return &image.Gray{Pix: f.Pix, Stride: f.Width, Rect: image.Rect(0, 0, f.Width, f.Height)}
}

// FromImage converts img to grayscale. color.GrayModel applies the
// ITU-R BT.601 luma weights (0.299, 0.587, 0.114).
func FromImage(img image.Image) *Frame {
	b := img.Bounds()
	f := New(b.Dx(), b.Dy())

	if g, ok := img.(*image.Gray); ok {
		for y := 0; y < f.Height; y++ {
			row := g.Pix[(y+b.Min.Y-g.Rect.Min.Y)*g.Stride+(b.Min.X-g.Rect.Min.X):]
			copy(f.Pix[y*f.Width:(y+1)*f.Width], row[:f.Width])
		}
		return f
	}

	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			c := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			f.Pix[y*f.Width+x] = c.Y
		}
	}
	return f
}

// Load decodes the image at path and converts it to grayscale. PNG, JPEG,
// GIF, BMP, TIFF and WebP are supported.
func Load(fsys fsutil.FileSystem, path string) (*Frame, error) {
	file, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image %s: %w", path, err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return FromImage(img), nil
}

// LoadAll loads every path in order. All frames must match the size of the
// first one.
func LoadAll(fsys fsutil.FileSystem, paths []string) ([]*Frame, error) {
	frames := make([]*Frame, 0, len(paths))
	for _, p := range paths {
		f, err := Load(fsys, p)
		if err != nil {
			return nil, err
		}
		if len(frames) > 0 && !frames[0].SameSize(f) {
			return nil, fmt.Errorf("%w: %s is %dx%d, first frame is %dx%d",
				ErrSizeMismatch, p, f.Width, f.Height, frames[0].Width, frames[0].Height)
		}
		frames = append(frames, f)
	}
	return frames, nil
}
