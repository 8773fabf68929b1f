// Package partition splits a dataset across simulated federated nodes.
package partition

import (
	"fmt"

	"fedpartition/internal/dataset"
)

// Options configures a partition call.
type Options struct {
	Nodes          int
	SamplesPerNode int
	BatchSize      int
	// Shuffle randomizes the draw and reshuffles every loader pass.
	Shuffle bool
	// ShuffleLabels permutes the label order before grouping (label-range only).
	ShuffleLabels bool
	LabelSeed     int64
	// Source defaults to the unseeded process-wide generator.
	Source Source
}

func (o Options) validate(maxNodes int) error {
	if maxNodes > 0 && (o.Nodes < 1 || o.Nodes > maxNodes) {
		return fmt.Errorf("%w: %d not in [1,%d]", ErrInvalidNodeCount, o.Nodes, maxNodes)
	}
	if o.Nodes < 1 {
		return fmt.Errorf("%w: %d < 1", ErrInvalidNodeCount, o.Nodes)
	}
	if o.SamplesPerNode <= 0 {
		return fmt.Errorf("%w (got %d)", ErrInvalidSampleCount, o.SamplesPerNode)
	}
	if o.BatchSize <= 0 {
		return fmt.Errorf("%w (got %d)", ErrInvalidBatchSize, o.BatchSize)
	}
	return nil
}

func (o Options) source() Source {
	if o.Source != nil {
		return o.Source
	}
	return NewSource(0)
}

// IID draws Nodes*SamplesPerNode samples and hands each node one contiguous
// chunk of SamplesPerNode of them.
func IID(ds *dataset.Dataset, opts Options) ([]*Loader, error) {
	if err := opts.validate(0); err != nil {
		return nil, err
	}
	src := opts.source()
	drawn, err := draw(ds, opts.Nodes*opts.SamplesPerNode, opts.Shuffle, src)
	if err != nil {
		return nil, err
	}

	loaders := make([]*Loader, opts.Nodes)
	for i := range loaders {
		chunk := drawn[i*opts.SamplesPerNode : (i+1)*opts.SamplesPerNode]
		loaders[i] = NewLoader(chunk, opts.BatchSize, opts.Shuffle, src)
	}
	return loaders, nil
}

// NonIID gives each node an exclusive group of labels and keeps only the
// drawn samples of that group. A node can end up with fewer than
// SamplesPerNode samples when the draw under-represents its labels.
func NonIID(ds *dataset.Dataset, opts Options) ([]*Loader, error) {
	if err := opts.validate(dataset.NumClasses); err != nil {
		return nil, err
	}
	groups, err := LabelGroups(opts.Nodes, opts.ShuffleLabels, opts.LabelSeed)
	if err != nil {
		return nil, err
	}
	src := opts.source()
	drawn, err := draw(ds, opts.Nodes*opts.SamplesPerNode, opts.Shuffle, src)
	if err != nil {
		return nil, err
	}

	loaders := make([]*Loader, len(groups))
	for i, group := range groups {
		var member [dataset.NumClasses]bool
		for _, label := range group {
			member[label] = true
		}
		var selected []dataset.Sample
		for _, s := range drawn {
			if s.Label >= 0 && s.Label < dataset.NumClasses && member[s.Label] {
				selected = append(selected, s)
			}
		}
		loaders[i] = NewLoader(selected, opts.BatchSize, opts.Shuffle, src)
	}
	return loaders, nil
}

// draw returns n samples without replacement: a random subset when shuffle
// is set, otherwise the first n in dataset order.
func draw(ds *dataset.Dataset, n int, shuffle bool, src Source) ([]dataset.Sample, error) {
	if n > ds.Len() {
		return nil, fmt.Errorf("%w: need %d samples, %s has %d", ErrInsufficientSamples, n, ds.Name(), ds.Len())
	}
	out := make([]dataset.Sample, n)
	if !shuffle {
		for i := range out {
			out[i] = ds.At(i)
		}
		return out, nil
	}
	perm := src.Perm(ds.Len())
	for i := range out {
		out[i] = ds.At(perm[i])
	}
	return out, nil
}
