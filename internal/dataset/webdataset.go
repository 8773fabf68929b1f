package dataset

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Record is a paired image/label entry from a WebDataset shard.
type Record struct {
	Key   string
	Data  []byte
	Label int
}

// ErrPendingOverflow indicates the pairing map exceeded the configured bound.
var ErrPendingOverflow = errors.New("webdataset: pending pair buffer exceeded")

const defaultPendingCap = 1024

// DefaultImageSide is the edge length shard images are resized to.
const DefaultImageSide = 28

// ShardOptions configures LoadShards.
type ShardOptions struct {
	Name       string
	Side       int
	PendingCap int
}

// LoadShards decodes every shard beneath root into a grayscale dataset.
// Samples keep shard order, then in-shard order.
func LoadShards(ctx context.Context, root string, opts ShardOptions) (*Dataset, error) {
	if opts.Side <= 0 {
		opts.Side = DefaultImageSide
	}
	if opts.Name == "" {
		opts.Name = filepath.Base(root)
	}
	shards, err := DiscoverShards(root)
	if err != nil {
		return nil, err
	}
	if len(shards) == 0 {
		return nil, fmt.Errorf("webdataset: no shards discovered under %s", root)
	}

	var samples []Sample
	for _, shard := range shards {
		records, err := ReadShard(ctx, shard, opts.PendingCap)
		if err != nil {
			return nil, fmt.Errorf("webdataset: %s: %w", shard, err)
		}
		for _, rec := range records {
			img, err := decodeGray(rec.Data, opts.Side)
			if err != nil {
				return nil, fmt.Errorf("webdataset: %s: decode %s: %w", shard, rec.Key, err)
			}
			samples = append(samples, Sample{Image: img, Label: rec.Label})
		}
	}
	return &Dataset{name: opts.Name, samples: samples}, nil
}

// ReadShard returns the paired records of the shard at path in the order
// their pairs complete.
func ReadShard(ctx context.Context, path string, pendingCap int) ([]Record, error) {
	if pendingCap <= 0 {
		pendingCap = defaultPendingCap
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open shard: %w", err)
	}
	defer f.Close()

	tr := tar.NewReader(bufio.NewReader(f))
	pending := make(map[string]*partial)
	var records []Record

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar: %w", err)
		}
		if hdr.FileInfo().IsDir() {
			continue
		}
		name := filepath.Base(hdr.Name)
		ext := strings.ToLower(filepath.Ext(name))
		key := strings.TrimSuffix(name, filepath.Ext(name))

		part := pending[key]
		if part == nil {
			part = &partial{}
		}
		switch ext {
		case ".jpg", ".jpeg", ".png":
			data, err := io.ReadAll(tr)
			if err != nil {
				return nil, fmt.Errorf("read image %s: %w", name, err)
			}
			part.image = data
		case ".cls":
			payload, err := io.ReadAll(tr)
			if err != nil {
				return nil, fmt.Errorf("read label %s: %w", name, err)
			}
			label, err := strconv.Atoi(strings.TrimSpace(string(payload)))
			if err != nil {
				return nil, fmt.Errorf("parse label %s: %w", name, err)
			}
			if label < 0 || label >= NumClasses {
				return nil, fmt.Errorf("%w: %s has %d", ErrLabelRange, name, label)
			}
			part.label = &label
		default:
			continue
		}

		if part.ready() {
			records = append(records, Record{Key: key, Data: part.image, Label: *part.label})
			delete(pending, key)
			continue
		}
		pending[key] = part
		if len(pending) > pendingCap {
			return nil, ErrPendingOverflow
		}
	}

	if len(pending) > 0 {
		return nil, fmt.Errorf("%d samples incomplete", len(pending))
	}
	return records, nil
}

type partial struct {
	image []byte
	label *int
}

func (p *partial) ready() bool {
	return len(p.image) > 0 && p.label != nil
}

// decodeGray decodes raw into a 1 x side x side luminance tensor using
// nearest-neighbour sampling.
func decodeGray(raw []byte, side int) (Image, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return Image{}, err
	}
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return Image{}, errors.New("empty image")
	}
	img := NewImage(1, side, side)
	for y := 0; y < side; y++ {
		py := bounds.Min.Y + y*height/side
		for x := 0; x < side; x++ {
			px := bounds.Min.X + x*width/side
			r, g, b, _ := src.At(px, py).RGBA()
			img.Set(0, y, x, float32(r+g+b)/(3*65535))
		}
	}
	return img, nil
}
