package problem

import (
	"encoding/json"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"
)

// problemFile is the on-disk JSON layout of a prepared node-classification
// problem.
type problemFile struct {
	Features   [][]float64 `json:"features"`
	Labels     []int       `json:"labels"`
	NumClasses int         `json:"num_classes"`
	Metapaths  [][][]int   `json:"metapaths"`
	Train      []int       `json:"train"`
	Val        []int       `json:"val"`
	Test       []int       `json:"test"`
}

// Load reads a prepared problem from a JSON file.
func Load(path string, seed int64) (*NodeProblem, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read problem file: %v", err)
	}

	var pf problemFile
	if err := json.Unmarshal(raw, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse problem file %s: %v", path, err)
	}
	if len(pf.Features) == 0 {
		return nil, fmt.Errorf("problem file %s contains no features", path)
	}

	dim := len(pf.Features[0])
	features := mat.NewDense(len(pf.Features), dim, nil)
	for i, row := range pf.Features {
		if len(row) != dim {
			return nil, fmt.Errorf("feature row %d has %d values, want %d", i, len(row), dim)
		}
		features.SetRow(i, row)
	}

	return New(features, pf.Labels, pf.NumClasses, pf.Metapaths, pf.Train, pf.Val, pf.Test, seed)
}
