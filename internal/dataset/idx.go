package dataset

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	idxImageMagic = 0x00000803
	idxLabelMagic = 0x00000801
)

// ErrBadMagic reports an IDX payload whose header does not match the expected type.
var ErrBadMagic = errors.New("idx: unexpected magic number")

type idxImages struct {
	count  int
	rows   int
	cols   int
	pixels []byte
}

func parseIDXImages(data []byte) (idxImages, error) {
	if len(data) < 16 {
		return idxImages{}, fmt.Errorf("idx images: header truncated (%d bytes)", len(data))
	}
	if magic := binary.BigEndian.Uint32(data[0:4]); magic != idxImageMagic {
		return idxImages{}, fmt.Errorf("%w: images 0x%08x", ErrBadMagic, magic)
	}
	out := idxImages{
		count: int(binary.BigEndian.Uint32(data[4:8])),
		rows:  int(binary.BigEndian.Uint32(data[8:12])),
		cols:  int(binary.BigEndian.Uint32(data[12:16])),
	}
	if out.rows == 0 || out.cols == 0 {
		return idxImages{}, fmt.Errorf("idx images: empty image shape %dx%d", out.rows, out.cols)
	}
	have := len(data) - 16
	if out.rows > have/out.cols || out.count > have/(out.rows*out.cols) {
		return idxImages{}, fmt.Errorf("idx images: %d images of %dx%d exceed %d pixel bytes", out.count, out.rows, out.cols, have)
	}
	want := out.count * out.rows * out.cols
	out.pixels = data[16 : 16+want]
	return out, nil
}

func parseIDXLabels(data []byte) ([]byte, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("idx labels: header truncated (%d bytes)", len(data))
	}
	if magic := binary.BigEndian.Uint32(data[0:4]); magic != idxLabelMagic {
		return nil, fmt.Errorf("%w: labels 0x%08x", ErrBadMagic, magic)
	}
	count := int(binary.BigEndian.Uint32(data[4:8]))
	if len(data)-8 < count {
		return nil, fmt.Errorf("idx labels: want %d labels, have %d", count, len(data)-8)
	}
	return data[8 : 8+count], nil
}

// decodeIDX pairs an images payload with a labels payload and normalizes
// pixels into [0,1].
func decodeIDX(name string, imageData, labelData []byte) (*Dataset, error) {
	imgs, err := parseIDXImages(imageData)
	if err != nil {
		return nil, err
	}
	labels, err := parseIDXLabels(labelData)
	if err != nil {
		return nil, err
	}
	if imgs.count != len(labels) {
		return nil, fmt.Errorf("idx: %d images but %d labels", imgs.count, len(labels))
	}

	plane := imgs.rows * imgs.cols
	backing := make([]float32, imgs.count*plane)
	for i, b := range imgs.pixels {
		backing[i] = float32(b) / 255
	}

	samples := make([]Sample, imgs.count)
	for i := range samples {
		if int(labels[i]) >= NumClasses {
			return nil, fmt.Errorf("idx: %w: sample %d has %d", ErrLabelRange, i, labels[i])
		}
		samples[i] = Sample{
			Image: Image{
				Channels: 1,
				Height:   imgs.rows,
				Width:    imgs.cols,
				Pix:      backing[i*plane : (i+1)*plane : (i+1)*plane],
			},
			Label: int(labels[i]),
		}
	}
	return &Dataset{name: name, samples: samples}, nil
}
