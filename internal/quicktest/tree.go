package quicktest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

const leaf = -1

// Tree is a fitted binary decision tree exported from scikit-learn's tree_
// arrays. Node i splits on Feature[i] at Threshold[i]; samples with a value
// <= the threshold go to ChildrenLeft[i]. Leaves have both children set to -1
// and predict the class with the largest count in Value[i].
type Tree struct {
	NFeatures     int         `json:"n_features"`
	Classes       []int       `json:"classes"`
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

// LoadTree reads and validates a tree artifact.
func LoadTree(path string) (*Tree, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read classifier: %w", err)
	}
	var t Tree
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("parse classifier %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("classifier %s: %w", path, err)
	}
	return &t, nil
}

func (t *Tree) Validate() error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return errors.New("tree has no nodes")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return fmt.Errorf("node arrays differ in length (left=%d right=%d feature=%d threshold=%d value=%d)",
			n, len(t.ChildrenRight), len(t.Feature), len(t.Threshold), len(t.Value))
	}
	if t.NFeatures <= 0 {
		return errors.New("n_features must be positive")
	}
	if len(t.Classes) < 2 {
		return fmt.Errorf("expected at least 2 classes, got %d", len(t.Classes))
	}

	for i := 0; i < n; i++ {
		l, r := t.ChildrenLeft[i], t.ChildrenRight[i]
		if (l == leaf) != (r == leaf) {
			return fmt.Errorf("node %d has exactly one child", i)
		}
		if l == leaf {
			if len(t.Value[i]) != len(t.Classes) {
				return fmt.Errorf("leaf %d has %d class counts, want %d", i, len(t.Value[i]), len(t.Classes))
			}
			continue
		}
		if l <= i || l >= n || r <= i || r >= n {
			return fmt.Errorf("node %d has children out of range (%d, %d)", i, l, r)
		}
		if f := t.Feature[i]; f < 0 || f >= t.NFeatures {
			return fmt.Errorf("node %d splits on feature %d outside [0,%d)", i, f, t.NFeatures)
		}
	}
	return nil
}

// Predict walks the tree for a single row and returns the predicted class.
func (t *Tree) Predict(row []float64) (int, error) {
	if len(row) != t.NFeatures {
		return 0, fmt.Errorf("row has %d features, tree expects %d", len(row), t.NFeatures)
	}

	node := 0
	for t.ChildrenLeft[node] != leaf {
		if row[t.Feature[node]] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}

	best := 0
	for i, v := range t.Value[node] {
		if v > t.Value[node][best] {
			best = i
		}
	}
	return t.Classes[best], nil
}
