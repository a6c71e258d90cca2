// Package quicktest handles the symptom questionnaire: storing answers and
// turning them into a binary appendicitis diagnosis with a decision tree.
package quicktest

import "github.com/appendiscan/backend/internal/store"

// SymptomRecord is one completed questionnaire. Values are free categories
// such as "yes"/"no" or "male"/"female"; an empty string is a valid answer.
type SymptomRecord struct {
	Sex                            string `json:"Sex"`
	Fever                          string `json:"Fever"`
	MigratoryPain                  string `json:"MigratoryPain"`
	IpsilateralReboundTenderness   string `json:"IpsilateralReboundTenderness"`
	ContralateralReboundTenderness string `json:"ContralateralReboundTenderness"`
	LowerRightAbdPain              string `json:"LowerRightAbdPain"`
	CoughingPain                   string `json:"CoughingPain"`
	Nausea                         string `json:"Nausea"`
	LossofAppetite                 string `json:"LossofAppetite"`
}

// symptomPayload is the request body. Pointers let "required" reject absent
// or null answers while still accepting "".
type symptomPayload struct {
	Sex                            *string `json:"Sex" binding:"required"`
	Fever                          *string `json:"Fever" binding:"required"`
	MigratoryPain                  *string `json:"MigratoryPain" binding:"required"`
	IpsilateralReboundTenderness   *string `json:"IpsilateralReboundTenderness" binding:"required"`
	ContralateralReboundTenderness *string `json:"ContralateralReboundTenderness" binding:"required"`
	LowerRightAbdPain              *string `json:"LowerRightAbdPain" binding:"required"`
	CoughingPain                   *string `json:"CoughingPain" binding:"required"`
	Nausea                         *string `json:"Nausea" binding:"required"`
	LossofAppetite                 *string `json:"LossofAppetite" binding:"required"`
}

// record assumes binding has already checked every field is set.
func (p symptomPayload) record() SymptomRecord {
	return SymptomRecord{
		Sex:                            *p.Sex,
		Fever:                          *p.Fever,
		MigratoryPain:                  *p.MigratoryPain,
		IpsilateralReboundTenderness:   *p.IpsilateralReboundTenderness,
		ContralateralReboundTenderness: *p.ContralateralReboundTenderness,
		LowerRightAbdPain:              *p.LowerRightAbdPain,
		CoughingPain:                   *p.CoughingPain,
		Nausea:                         *p.Nausea,
		LossofAppetite:                 *p.LossofAppetite,
	}
}

// Field is a named categorical answer.
type Field struct {
	Name  string
	Value string
}

// Fields returns the answers in declaration order, named as they appear on
// the wire and in the encoded column names.
func (r SymptomRecord) Fields() []Field {
	return []Field{
		{"Sex", r.Sex},
		{"Fever", r.Fever},
		{"MigratoryPain", r.MigratoryPain},
		{"IpsilateralReboundTenderness", r.IpsilateralReboundTenderness},
		{"ContralateralReboundTenderness", r.ContralateralReboundTenderness},
		{"LowerRightAbdPain", r.LowerRightAbdPain},
		{"CoughingPain", r.CoughingPain},
		{"Nausea", r.Nausea},
		{"LossofAppetite", r.LossofAppetite},
	}
}

// Document converts the record to the shape written to the store.
func (r SymptomRecord) Document() store.Document {
	fields := r.Fields()
	doc := make(store.Document, len(fields)+1)
	for _, f := range fields {
		doc[f.Name] = f.Value
	}
	return doc
}
