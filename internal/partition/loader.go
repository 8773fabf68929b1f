package partition

import (
	"io"

	"fedpartition/internal/dataset"
)

// Batch is a group of images with their labels.
type Batch struct {
	Images []dataset.Image
	Labels []int
}

// Len returns the number of samples in the batch.
func (b Batch) Len() int { return len(b.Labels) }

// Loader yields one node's samples in fixed-size batches. A pass ends with
// io.EOF; Reset starts the next one, reshuffling when shuffling is enabled.
type Loader struct {
	samples   []dataset.Sample
	batchSize int
	shuffle   bool
	src       Source
	order     []int
	pos       int
}

// NewLoader returns a loader positioned at the start of its first pass.
// A batchSize below 1 is treated as 1.
func NewLoader(samples []dataset.Sample, batchSize int, shuffle bool, src Source) *Loader {
	if src == nil {
		src = NewSource(0)
	}
	if batchSize < 1 {
		batchSize = 1
	}
	l := &Loader{
		samples:   append([]dataset.Sample(nil), samples...),
		batchSize: batchSize,
		shuffle:   shuffle,
		src:       src,
	}
	l.Reset()
	return l
}

// Len returns the number of samples owned by the loader.
func (l *Loader) Len() int { return len(l.samples) }

// BatchSize returns the configured batch size.
func (l *Loader) BatchSize() int { return l.batchSize }

// NumBatches returns the number of batches per pass, counting a final partial one.
func (l *Loader) NumBatches() int {
	return (len(l.samples) + l.batchSize - 1) / l.batchSize
}

// Reset rewinds to the start of a new pass.
func (l *Loader) Reset() {
	l.pos = 0
	if l.order == nil {
		l.order = make([]int, len(l.samples))
		for i := range l.order {
			l.order[i] = i
		}
	}
	if l.shuffle {
		l.src.Shuffle(len(l.order), func(i, j int) {
			l.order[i], l.order[j] = l.order[j], l.order[i]
		})
	}
}

// Next returns the next batch of the current pass, or io.EOF once every
// sample has been yielded.
func (l *Loader) Next() (Batch, error) {
	if l.pos >= len(l.order) {
		return Batch{}, io.EOF
	}
	end := l.pos + l.batchSize
	if end > len(l.order) {
		end = len(l.order)
	}
	batch := Batch{
		Images: make([]dataset.Image, 0, end-l.pos),
		Labels: make([]int, 0, end-l.pos),
	}
	for _, idx := range l.order[l.pos:end] {
		batch.Images = append(batch.Images, l.samples[idx].Image)
		batch.Labels = append(batch.Labels, l.samples[idx].Label)
	}
	l.pos = end
	return batch, nil
}

// Labels returns the label of every owned sample in storage order.
func (l *Loader) Labels() []int {
	labels := make([]int, len(l.samples))
	for i, s := range l.samples {
		labels[i] = s.Label
	}
	return labels
}

// Samples returns a copy of the owned samples in storage order.
func (l *Loader) Samples() []dataset.Sample {
	return append([]dataset.Sample(nil), l.samples...)
}
