package plot

import (
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"fedpartition/internal/dataset"
	"fedpartition/internal/partition"
)

func TestRenderGridGeometry(t *testing.T) {
	batch := uniformBatch(7, 1, 2, 3, 1)
	img, err := Render(batch, Options{Scale: 2})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != Columns*3*2 || b.Dy() != 2*2*2 {
		t.Fatalf("unexpected bounds %v", b)
	}

	titled, err := Render(batch, Options{Scale: 2, Title: "node 0"})
	if err != nil {
		t.Fatalf("Render with title: %v", err)
	}
	if titled.Bounds().Dy() != titleBand+2*2*2 {
		t.Fatalf("title band missing: %v", titled.Bounds())
	}
}

func TestRenderInvertsIntensity(t *testing.T) {
	batch := uniformBatch(6, 1, 2, 2, 1)
	img, err := Render(batch, Options{Scale: 1})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got := img.GrayAt(0, 0).Y; got != 0 {
		t.Fatalf("full intensity rendered as %d, want 0", got)
	}
	// second row, second column is past the sixth image
	if got := img.GrayAt(2*1+1, 2+1).Y; got != 255 {
		t.Fatalf("empty cell rendered as %d, want 255", got)
	}
}

func TestRenderLimitsExamples(t *testing.T) {
	batch := uniformBatch(30, 1, 2, 2, 0.5)
	img, err := Render(batch, Options{Scale: 1})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if rows := img.Bounds().Dy() / 2; rows != DefaultExamples/Columns {
		t.Fatalf("rendered %d rows, want %d", rows, DefaultExamples/Columns)
	}
}

func TestRenderErrors(t *testing.T) {
	if _, err := Render(partition.Batch{}, Options{}); !errors.Is(err, ErrNoSamples) {
		t.Fatalf("expected ErrNoSamples, got %v", err)
	}
	if _, err := Render(uniformBatch(2, 1, 2, 2, 1), Options{Channel: 1}); !errors.Is(err, ErrInvalidChannel) {
		t.Fatalf("expected ErrInvalidChannel, got %v", err)
	}
}

func TestSamplesWritesPNG(t *testing.T) {
	dir := t.TempDir()
	batch := uniformBatch(5, 3, 4, 4, 0.25)
	if _, err := Samples(batch, Options{Channel: 2, Dir: dir, Name: "node0", Title: "train"}); err != nil {
		t.Fatalf("Samples: %v", err)
	}
	f, err := os.Open(filepath.Join(dir, "node0.png"))
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	if _, err := png.Decode(f); err != nil {
		t.Fatalf("decode output: %v", err)
	}
}

func TestSamplesWithoutNameWritesNothing(t *testing.T) {
	dir := t.TempDir()
	if _, err := Samples(uniformBatch(3, 1, 2, 2, 1), Options{Dir: dir}); err != nil {
		t.Fatalf("Samples: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected no files, found %d", len(entries))
	}
}

func TestSamplesMissingDirFails(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plots")
	if _, err := Samples(uniformBatch(3, 1, 2, 2, 1), Options{Dir: dir, Name: "x"}); err == nil {
		t.Fatal("expected error for missing output directory")
	}
	if _, err := os.Stat(dir); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("output directory must not be created, stat err=%v", err)
	}
}

func uniformBatch(n, channels, height, width int, value float32) partition.Batch {
	var b partition.Batch
	for i := 0; i < n; i++ {
		img := dataset.NewImage(channels, height, width)
		for j := range img.Pix {
			img.Pix[j] = value
		}
		b.Images = append(b.Images, img)
		b.Labels = append(b.Labels, i%dataset.NumClasses)
	}
	return b
}
