package dataset

import (
	"errors"
	"fmt"
)

// NumClasses is the number of distinct labels in the digit datasets.
const NumClasses = 10

// ErrLabelRange reports a class label outside [0,NumClasses).
var ErrLabelRange = errors.New("label outside class range")

// Image is a channel-major C x H x W tensor with values in [0,1].
type Image struct {
	Channels int
	Height   int
	Width    int
	Pix      []float32
}

// NewImage allocates a zeroed image.
func NewImage(channels, height, width int) Image {
	return Image{
		Channels: channels,
		Height:   height,
		Width:    width,
		Pix:      make([]float32, channels*height*width),
	}
}

// At returns the value at channel c, row y, column x.
func (im Image) At(c, y, x int) float32 {
	return im.Pix[(c*im.Height+y)*im.Width+x]
}

// Set stores v at channel c, row y, column x.
func (im Image) Set(c, y, x int, v float32) {
	im.Pix[(c*im.Height+y)*im.Width+x] = v
}

// Channel returns the H*W plane of channel c.
func (im Image) Channel(c int) []float32 {
	plane := im.Height * im.Width
	return im.Pix[c*plane : (c+1)*plane]
}

// Sample is one labeled image.
type Sample struct {
	Image Image
	Label int
}

// Dataset is an ordered, read-only sequence of samples.
type Dataset struct {
	name    string
	samples []Sample
}

// New wraps samples into a Dataset. The slice is copied; the image
// buffers are shared and must not be modified afterwards.
func New(name string, samples []Sample) *Dataset {
	return &Dataset{name: name, samples: append([]Sample(nil), samples...)}
}

// Name identifies the dataset in logs.
func (d *Dataset) Name() string { return d.name }

// Len returns the number of samples.
func (d *Dataset) Len() int { return len(d.samples) }

// At returns sample i. It panics when i is out of range, like a slice index.
func (d *Dataset) At(i int) Sample {
	if i < 0 || i >= len(d.samples) {
		panic(fmt.Sprintf("dataset %s: index %d out of range [0,%d)", d.name, i, len(d.samples)))
	}
	return d.samples[i]
}

// Labels returns the label of every sample in order.
func (d *Dataset) Labels() []int {
	labels := make([]int, len(d.samples))
	for i, s := range d.samples {
		labels[i] = s.Label
	}
	return labels
}
