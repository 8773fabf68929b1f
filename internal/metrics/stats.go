package metrics

import (
	"fmt"
	"sort"
	"strings"

	"fedpartition/internal/dataset"
)

// Histogram counts samples per label.
type Histogram [dataset.NumClasses]int

// Record adds labels to the histogram. Labels outside the class range are ignored.
func (h *Histogram) Record(labels ...int) {
	for _, label := range labels {
		if label >= 0 && label < dataset.NumClasses {
			h[label]++
		}
	}
}

// Total returns the number of recorded samples.
func (h Histogram) Total() int {
	total := 0
	for _, c := range h {
		total += c
	}
	return total
}

// Present returns the labels with at least one sample, ascending.
func (h Histogram) Present() []int {
	var labels []int
	for label, c := range h {
		if c > 0 {
			labels = append(labels, label)
		}
	}
	return labels
}

// String renders non-zero buckets as "label:count" pairs.
func (h Histogram) String() string {
	parts := make([]string, 0, len(h))
	for label, c := range h {
		if c > 0 {
			parts = append(parts, fmt.Sprintf("%d:%d", label, c))
		}
	}
	return strings.Join(parts, " ")
}

// Partition is implemented by partition.Loader.
type Partition interface {
	Len() int
	NumBatches() int
	Labels() []int
}

// NodeSummary describes one node's partition.
type NodeSummary struct {
	Node      int
	Samples   int
	Batches   int
	Labels    []int
	Histogram Histogram
}

// Summarize describes every node partition in order.
func Summarize[P Partition](parts []P) []NodeSummary {
	out := make([]NodeSummary, len(parts))
	for i, p := range parts {
		var h Histogram
		h.Record(p.Labels()...)
		out[i] = NodeSummary{
			Node:      i,
			Samples:   p.Len(),
			Batches:   p.NumBatches(),
			Labels:    h.Present(),
			Histogram: h,
		}
	}
	return out
}

// Overlap returns labels held by more than one node, ascending.
func Overlap(summaries []NodeSummary) []int {
	owners := make(map[int]int)
	for _, s := range summaries {
		for _, label := range s.Labels {
			owners[label]++
		}
	}
	var shared []int
	for label, n := range owners {
		if n > 1 {
			shared = append(shared, label)
		}
	}
	sort.Ints(shared)
	return shared
}
