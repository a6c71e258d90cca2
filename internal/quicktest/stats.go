package quicktest

import (
	"strings"

	"github.com/appendiscan/backend/internal/store"
)

// FeverCounts splits the records of one diagnosis by their Fever answer.
type FeverCounts struct {
	Yes int `json:"yes"`
	No  int `json:"no"`
}

// Stats summarizes stored questionnaires. Diagnosis keys are lower-cased;
// records written by /submit_quicktest carry no diagnosis and only count
// towards Total.
type Stats struct {
	Total             int                    `json:"total"`
	Diagnoses         map[string]int         `json:"diagnoses"`
	AppendicitisBySex map[string]int         `json:"appendicitis_by_sex"`
	FeverByDiagnosis  map[string]FeverCounts `json:"fever_by_diagnosis"`
}

func Aggregate(records []store.Record) Stats {
	s := Stats{
		Total:             len(records),
		Diagnoses:         map[string]int{},
		AppendicitisBySex: map[string]int{},
		FeverByDiagnosis:  map[string]FeverCounts{},
	}
	positive := strings.ToLower(DiagnosisPositive)

	for _, r := range records {
		diagnosis := normalize(r.Data.StringField("diagnosis"))
		if diagnosis == "" {
			continue
		}
		s.Diagnoses[diagnosis]++

		if diagnosis == positive {
			if sex := strings.TrimSpace(r.Data.StringField("Sex")); sex != "" {
				s.AppendicitisBySex[sex]++
			}
		}

		fc := s.FeverByDiagnosis[diagnosis]
		switch normalize(r.Data.StringField("Fever")) {
		case "yes":
			fc.Yes++
		case "no":
			fc.No++
		}
		s.FeverByDiagnosis[diagnosis] = fc
	}
	return s
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
