package isoforest

import (
	"context"
	"math"

	"github.com/dwellscope/dwellscope/pkg/alg/stats"
)

// Forest construction parameters.
const (
	numTrees      = 100
	subsampleSize = 256
	eulerGamma    = 0.5772156649
)

// treeNode is a node of an isolation tree. Leaves carry the size of the
// partition that terminated there; internal nodes carry the split value.
type treeNode struct {
	split float64
	left  *treeNode
	right *treeNode
	size  int
	leaf  bool
}

// forest is a trained ensemble of isolation trees over a single dimension.
type forest struct {
	trees []*treeNode
	norm  float64
}

// growForest trains numTrees isolation trees, each on a subsample drawn
// without replacement. The context is checked between trees so a cancelled
// analysis stops promptly.
func growForest(ctx context.Context, values []float64, seed int64) (*forest, error) {
	psi := min(subsampleSize, len(values))
	maxDepth := 0

	if psi > 1 {
		maxDepth = int(math.Ceil(math.Log2(float64(psi))))
	}

	rng := &splitmix64{state: uint64(seed)}
	trees := make([]*treeNode, 0, numTrees)

	for range numTrees {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sub := rng.sample(values, psi)
		trees = append(trees, buildTree(sub, 0, maxDepth, rng))
	}

	return &forest{trees: trees, norm: averagePathLength(psi)}, nil
}

// buildTree recursively partitions values at uniformly random split points
// until isolation, the depth cap, or a constant partition.
func buildTree(values []float64, depth, maxDepth int, rng *splitmix64) *treeNode {
	if len(values) <= 1 || depth >= maxDepth {
		return &treeNode{size: len(values), leaf: true}
	}

	lo, hi := stats.MinMax(values)
	if lo == hi {
		return &treeNode{size: len(values), leaf: true}
	}

	split := lo + rng.float64()*(hi-lo)

	var left, right []float64

	for _, v := range values {
		if v < split {
			left = append(left, v)
		} else {
			right = append(right, v)
		}
	}

	return &treeNode{
		split: split,
		left:  buildTree(left, depth+1, maxDepth, rng),
		right: buildTree(right, depth+1, maxDepth, rng),
		size:  len(values),
	}
}

// score returns the anomaly score for v in [0, 1]. Scores near 1 indicate
// isolation after very few splits; scores near 0.5 indicate average depth.
func (f *forest) score(v float64) float64 {
	if len(f.trees) == 0 || f.norm == 0 {
		return 0.5
	}

	total := 0.0
	for _, root := range f.trees {
		total += pathLength(root, v, 0)
	}

	avg := total / float64(len(f.trees))

	return math.Pow(2, -avg/f.norm)
}

// pathLength walks v down the tree and returns the path length, extended by
// the expected depth of an unbuilt subtree at non-singleton leaves.
func pathLength(node *treeNode, v float64, depth int) float64 {
	if node.leaf {
		if node.size > 1 {
			return float64(depth) + averagePathLength(node.size)
		}

		return float64(depth)
	}

	if v < node.split {
		return pathLength(node.left, v, depth+1)
	}

	return pathLength(node.right, v, depth+1)
}

// averagePathLength is c(n), the expected path length of an unsuccessful
// search in a binary search tree over n points.
func averagePathLength(n int) float64 {
	if n <= 1 {
		return 0
	}

	fn := float64(n)

	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}
