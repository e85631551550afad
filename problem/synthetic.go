package problem

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Synthetic generates a separable node-classification problem for tests and
// demos: class-conditioned Gaussian features, ring adjacency per metapath,
// and a 60/20/20 split. Generation is deterministic for a given seed.
func Synthetic(nodes, dim, numClasses, numMetapaths int, seed int64) (*NodeProblem, error) {
	rng := rand.New(rand.NewSource(seed))

	features := mat.NewDense(nodes, dim, nil)
	labels := make([]int, nodes)
	for i := 0; i < nodes; i++ {
		class := i % numClasses
		labels[i] = class
		for j := 0; j < dim; j++ {
			center := 0.0
			if j%numClasses == class {
				center = 2.0
			}
			features.Set(i, j, center+rng.NormFloat64()*0.5)
		}
	}

	// Ring neighborhoods with stride m+1 give each metapath a distinct but
	// label-preserving structure (stride multiples of numClasses keep
	// neighbors in the same class ring).
	metapaths := make([][][]int, numMetapaths)
	for m := 0; m < numMetapaths; m++ {
		stride := (m + 1) * numClasses
		adj := make([][]int, nodes)
		for i := 0; i < nodes; i++ {
			adj[i] = []int{
				((i-stride)%nodes + nodes) % nodes,
				(i + stride) % nodes,
			}
		}
		metapaths[m] = adj
	}

	perm := rng.Perm(nodes)
	trainEnd := nodes * 6 / 10
	valEnd := nodes * 8 / 10
	train := perm[:trainEnd]
	val := perm[trainEnd:valEnd]
	test := perm[valEnd:]

	return New(features, labels, numClasses, metapaths, train, val, test, seed)
}
