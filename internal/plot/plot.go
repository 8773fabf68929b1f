// Package plot renders sample grids of a node partition for inspection.
package plot

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"fedpartition/internal/dataset"
	"fedpartition/internal/partition"
)

const (
	// Columns is the fixed width of the grid, in images.
	Columns = 5
	// DefaultExamples is the number of images rendered when Options.Examples is 0.
	DefaultExamples = 20
	// DefaultDir is where Samples writes when Options.Dir is empty.
	DefaultDir = "plots"
	// DefaultScale is the per-pixel upscale factor.
	DefaultScale = 4

	titleBand = 20
)

var (
	// ErrNoSamples reports an empty batch or a non-positive example count.
	ErrNoSamples = errors.New("plot: nothing to render")
	// ErrInvalidChannel reports a channel index the images do not have.
	ErrInvalidChannel = errors.New("plot: channel out of range")
)

// Options configures a sample grid.
type Options struct {
	Channel  int
	Examples int
	Title    string
	// Name is the output file name without extension. Empty means render only.
	Name  string
	Dir   string
	Scale int
}

func (o *Options) defaults() {
	if o.Examples == 0 {
		o.Examples = DefaultExamples
	}
	if o.Dir == "" {
		o.Dir = DefaultDir
	}
	if o.Scale <= 0 {
		o.Scale = DefaultScale
	}
}

// Samples renders batch and, when opts.Name is set, writes it to
// <Dir>/<Name>.png. The directory must already exist.
func Samples(batch partition.Batch, opts Options) (*image.Gray, error) {
	opts.defaults()
	img, err := Render(batch, opts)
	if err != nil {
		return nil, err
	}
	if opts.Name == "" {
		return img, nil
	}
	if _, err := Save(img, opts.Dir, opts.Name); err != nil {
		return nil, err
	}
	return img, nil
}

// Render draws up to opts.Examples images of batch as an inverted grayscale
// grid, Columns wide, with the title in a band above it.
func Render(batch partition.Batch, opts Options) (*image.Gray, error) {
	opts.defaults()
	n := min(opts.Examples, len(batch.Images))
	if n <= 0 {
		return nil, ErrNoSamples
	}
	cellH, cellW := batch.Images[0].Height*opts.Scale, batch.Images[0].Width*opts.Scale
	rows := (n + Columns - 1) / Columns
	top := 0
	if opts.Title != "" {
		top = titleBand
	}

	canvas := image.NewGray(image.Rect(0, 0, Columns*cellW, top+rows*cellH))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Gray{Y: 255}), image.Point{}, draw.Src)

	for idx := 0; idx < n; idx++ {
		src := batch.Images[idx]
		if opts.Channel < 0 || opts.Channel >= src.Channels {
			return nil, fmt.Errorf("%w: %d (image %d has %d channels)", ErrInvalidChannel, opts.Channel, idx, src.Channels)
		}
		x0 := (idx % Columns) * cellW
		y0 := top + (idx/Columns)*cellH
		cell := image.Rect(x0, y0, x0+cellW, y0+cellH)
		draw.NearestNeighbor.Scale(canvas, cell, inverted(src, opts.Channel), image.Rect(0, 0, src.Width, src.Height), draw.Src, nil)
	}

	if opts.Title != "" {
		drawTitle(canvas, opts.Title)
	}
	return canvas, nil
}

// Save writes img as <dir>/<name>.png and returns the path.
func Save(img image.Image, dir, name string) (string, error) {
	path := filepath.Join(dir, name+".png")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("plot: create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return "", fmt.Errorf("plot: encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("plot: close %s: %w", path, err)
	}
	return path, nil
}

func inverted(src dataset.Image, channel int) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, src.Width, src.Height))
	plane := src.Channel(channel)
	for i, v := range plane {
		v = max(0, min(1, v))
		out.Pix[i] = 255 - uint8(v*255+0.5)
	}
	return out
}

func drawTitle(canvas *image.Gray, title string) {
	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(color.Gray{Y: 0}),
		Face: basicfont.Face7x13,
	}
	width := d.MeasureString(title).Ceil()
	x := (canvas.Bounds().Dx() - width) / 2
	if x < 2 {
		x = 2
	}
	d.Dot = fixed.P(x, titleBand-5)
	d.DrawString(title)
}
