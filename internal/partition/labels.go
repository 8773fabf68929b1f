package partition

import (
	"fmt"
	"math/rand"

	"fedpartition/internal/dataset"
)

// LabelOrder returns the labels 0..NumClasses-1, permuted with a source
// seeded by seed when shuffle is set.
func LabelOrder(shuffle bool, seed int64) []int {
	if shuffle {
		return rand.New(rand.NewSource(seed)).Perm(dataset.NumClasses)
	}
	order := make([]int, dataset.NumClasses)
	for i := range order {
		order[i] = i
	}
	return order
}

// SplitLabels cuts order into nodes contiguous groups. Each group takes
// remaining/nodesLeft labels from the front, so sizes differ by at most one
// and the larger groups come last.
func SplitLabels(order []int, nodes int) ([][]int, error) {
	if nodes < 1 || nodes > len(order) {
		return nil, fmt.Errorf("%w: %d not in [1,%d]", ErrInvalidNodeCount, nodes, len(order))
	}
	groups := make([][]int, 0, nodes)
	i := 0
	for n := nodes; n > 0; n-- {
		size := (len(order) - i) / n
		groups = append(groups, append([]int(nil), order[i:i+size]...))
		i += size
	}
	return groups, nil
}

// LabelGroups returns the label group owned by each node in label-range mode.
func LabelGroups(nodes int, shuffle bool, seed int64) ([][]int, error) {
	if nodes < 1 || nodes > dataset.NumClasses {
		return nil, fmt.Errorf("%w: %d not in [1,%d]", ErrInvalidNodeCount, nodes, dataset.NumClasses)
	}
	return SplitLabels(LabelOrder(shuffle, seed), nodes)
}
