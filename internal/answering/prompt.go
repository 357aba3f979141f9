package answering

import (
	"fmt"
	"strings"

	"github.com/jonathan/instant-apply/internal/llm"
	"github.com/jonathan/instant-apply/internal/types"
)

// resumeContextLimit bounds how much resume text travels in a prompt.
const resumeContextLimit = 4000

// buildTextPrompt assembles the generation prompt for a free-text
// question. Resume text is truncated so prompt size stays bounded no
// matter how long the stored resume is.
func buildTextPrompt(q types.Question, profile types.UserProfileSnapshot, maxLength int) string {
	var b strings.Builder
	b.WriteString("You are completing a job application on behalf of a candidate.\n")
	b.WriteString("Answer the application question below in the first person, concisely and professionally.\n")
	b.WriteString("Return only the answer text with no preamble, labels, or markdown.\n\n")

	fmt.Fprintf(&b, "Question: %s\n\n", q.Label)

	if len(profile.Skills) > 0 {
		fmt.Fprintf(&b, "Candidate skills: %s\n", strings.Join(profile.Skills, ", "))
	}
	if len(profile.Experience) > 0 {
		fmt.Fprintf(&b, "Candidate experience: %s\n", strings.Join(profile.Experience, "; "))
	}
	if profile.CareerGoals != "" {
		fmt.Fprintf(&b, "Candidate career goals: %s\n", profile.CareerGoals)
	}
	if resume := llm.TruncateRunes(profile.ResumeText, resumeContextLimit); resume != "" {
		fmt.Fprintf(&b, "\nResume excerpt:\n%s\n", resume)
	}

	if maxLength > 0 {
		fmt.Fprintf(&b, "\nThe answer must be at most %d characters.\n", maxLength)
	} else {
		b.WriteString("\nKeep the answer under 120 words.\n")
	}
	return b.String()
}

// buildChoicePrompt assembles the selection prompt for a choice
// question. The model must return a JSON object naming the zero-based
// index of the best option.
func buildChoicePrompt(q types.Question, profile types.UserProfileSnapshot) string {
	var b strings.Builder
	b.WriteString("You are completing a job application on behalf of a candidate.\n")
	b.WriteString("Pick the single best option for the question below.\n")
	b.WriteString(`Respond with JSON of the form {"choice": <zero-based index>} and nothing else.` + "\n\n")

	fmt.Fprintf(&b, "Question: %s\n\nOptions:\n", q.Label)
	for i, c := range q.Choices {
		fmt.Fprintf(&b, "%d. %s\n", i, c)
	}

	if len(profile.Skills) > 0 {
		fmt.Fprintf(&b, "\nCandidate skills: %s\n", strings.Join(profile.Skills, ", "))
	}
	if len(profile.Experience) > 0 {
		fmt.Fprintf(&b, "Candidate experience: %s\n", strings.Join(profile.Experience, "; "))
	}
	return b.String()
}
