package detect

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadLabels reads the class names of a detection model from a dataset YAML
// file. Both the list form and the index map form of "names" are accepted:
//
//	names: [appendix, appendicitis]
//	names: {0: appendix, 1: appendicitis}
func LoadLabels(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	labels, err := parseLabels(raw)
	if err != nil {
		return nil, fmt.Errorf("labels %s: %w", path, err)
	}
	return labels, nil
}

func parseLabels(raw []byte) ([]string, error) {
	var doc struct {
		Names yaml.Node `yaml:"names"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	var labels []string
	switch doc.Names.Kind {
	case yaml.SequenceNode:
		if err := doc.Names.Decode(&labels); err != nil {
			return nil, err
		}
	case yaml.MappingNode:
		var byIndex map[int]string
		if err := doc.Names.Decode(&byIndex); err != nil {
			return nil, err
		}
		labels = make([]string, len(byIndex))
		for i := range labels {
			name, ok := byIndex[i]
			if !ok {
				return nil, fmt.Errorf("class index %d missing from names", i)
			}
			labels[i] = name
		}
	default:
		return nil, errors.New(`no "names" list or map`)
	}

	if len(labels) == 0 {
		return nil, errors.New("names is empty")
	}
	return labels, nil
}
