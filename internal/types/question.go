package types

// QuestionKind classifies a discovered form field.
type QuestionKind string

// Question kinds recognized by the form extractor. Field shapes that do
// not map to one of these degrade to an unsupported-field skip rather
// than failing extraction.
const (
	KindText        QuestionKind = "text"
	KindChoice      QuestionKind = "choice"
	KindMultiChoice QuestionKind = "multichoice"
	KindFile        QuestionKind = "file"
	KindBoolean     QuestionKind = "boolean"
)

// Question is a single field discovered on an application form.
// Questions belong to exactly one attempt and are re-discovered on every
// attempt; they are never assumed stable across time for a listing.
type Question struct {
	ID    string       `json:"id"`
	Label string       `json:"label"`
	Kind  QuestionKind `json:"kind"`

	// FieldID is derived from stable DOM attributes (name, then id).
	// When neither is present a positional hash is used and
	// LowConfidence is set.
	FieldID       string `json:"field_id"`
	LowConfidence bool   `json:"low_confidence,omitempty"`

	// Choices is the ordered allowed-choice set for choice-type questions.
	Choices []string `json:"choices,omitempty"`
	// ChoiceValues are the underlying control values aligned with Choices,
	// set for select elements.
	ChoiceValues []string `json:"choice_values,omitempty"`
	// ChoiceSelectors address the individual option controls aligned with
	// Choices, set for radio and checkbox groups.
	ChoiceSelectors []string `json:"choice_selectors,omitempty"`

	// Page and Position record where on the (possibly multi-page) form
	// the field was found, in the order the submission driver must
	// replay it.
	Page     int `json:"page"`
	Position int `json:"position"`

	// MaxLength is the form-declared maximum value length, 0 if none.
	MaxLength int `json:"max_length,omitempty"`

	// Selector is the CSS selector the driver uses to address the field.
	Selector string `json:"selector"`
}

// IsChoice reports whether the question carries an allowed-choice set.
func (q Question) IsChoice() bool {
	return q.Kind == KindChoice || q.Kind == KindMultiChoice || q.Kind == KindBoolean
}
