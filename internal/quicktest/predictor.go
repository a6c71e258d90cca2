package quicktest

import "fmt"

const (
	DiagnosisPositive = "Appendicitis"
	DiagnosisNegative = "No Appendicitis"

	positiveClass = 1
)

// Classifier predicts a class for one schema-aligned row.
type Classifier interface {
	Predict(row []float64) (int, error)
}

// Predictor encodes a record against the stored schema and maps the
// classifier output to a diagnosis label.
type Predictor struct {
	schema     *Schema
	classifier Classifier
}

func NewPredictor(schema *Schema, classifier Classifier) (*Predictor, error) {
	if t, ok := classifier.(*Tree); ok && t.NFeatures != schema.Len() {
		return nil, fmt.Errorf("classifier expects %d features but column schema has %d", t.NFeatures, schema.Len())
	}
	return &Predictor{schema: schema, classifier: classifier}, nil
}

// LoadPredictor loads the classifier and column schema artifacts.
func LoadPredictor(classifierPath, columnsPath string) (*Predictor, error) {
	tree, err := LoadTree(classifierPath)
	if err != nil {
		return nil, err
	}
	schema, err := LoadSchema(columnsPath)
	if err != nil {
		return nil, err
	}
	return NewPredictor(schema, tree)
}

func (p *Predictor) Diagnose(r SymptomRecord) (string, error) {
	class, err := p.classifier.Predict(p.schema.Row(r))
	if err != nil {
		return "", fmt.Errorf("classify: %w", err)
	}
	if class == positiveClass {
		return DiagnosisPositive, nil
	}
	return DiagnosisNegative, nil
}
