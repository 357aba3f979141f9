package types

// Provenance records how an answer's value was produced.
type Provenance string

// Answer provenance tags. Deterministic profile matches are preferred
// over generated answers because they are reproducible and auditable.
const (
	ProvenanceProfile   Provenance = "profile"
	ProvenanceGenerated Provenance = "generated"
	ProvenanceSkipped   Provenance = "skipped"
	ProvenanceFile      Provenance = "file"
)

// Answer is the synthesized value for one question on one attempt.
// Answers are never mutated after creation; a retry produces new
// answers under a new attempt.
type Answer struct {
	ID         string `json:"id"`
	QuestionID string `json:"question_id"`
	Value      string `json:"value,omitempty"`
	// ChoiceIndex is the selected index into the question's choice set,
	// nil for non-choice answers.
	ChoiceIndex *int `json:"choice_index,omitempty"`
	// FileKey references the resume binary in the resume store for
	// file-upload answers.
	FileKey    string     `json:"file_key,omitempty"`
	Provenance Provenance `json:"provenance"`
}

// Skipped reports whether the answer degraded to an empty skipped value,
// e.g. because the generative backend was unavailable or timed out.
func (a Answer) Skipped() bool {
	return a.Provenance == ProvenanceSkipped
}
