package forms

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/jonathan/instant-apply/internal/types"
)

// textInputTypes are the <input> types treated as free-text fields.
var textInputTypes = map[string]bool{
	"":       true,
	"text":   true,
	"email":  true,
	"tel":    true,
	"url":    true,
	"search": true,
	"number": true,
	"date":   true,
}

// ignoredInputTypes never become questions: they carry no user-visible
// prompt.
var ignoredInputTypes = map[string]bool{
	"hidden": true,
	"submit": true,
	"button": true,
	"reset":  true,
	"image":  true,
}

// continueWords and submitWords classify form controls that advance a
// page versus ones that finish the application. The boundary is a
// heuristic: a "continue" control can also be used for in-page
// validation on some boards.
var (
	continueWords = []string{"continue", "next", "save and continue", "proceed"}
	submitWords   = []string{"submit", "apply", "send application", "finish", "send"}
)

// Page is the question set discovered on a single rendered form page,
// plus the navigation controls found on it.
type Page struct {
	Index     int
	Questions []types.Question
	Skipped   []SkippedField

	// ContinueSelector addresses the control that advances a multi-page
	// wizard; empty when none was found.
	ContinueSelector string
	// HasSubmit reports whether a final submit control is present.
	HasSubmit bool
	// SubmitSelector addresses the submit control when present.
	SubmitSelector string
}

// IsIntermediate reports whether the page looks like a non-final wizard
// page: a continue control with no submit control present.
func (p Page) IsIntermediate() bool {
	return p.ContinueSelector != "" && !p.HasSubmit
}

// ParsePage walks the rendered form markup of one page and classifies
// every interactive element into a Question. pageIndex tags the
// questions with their page order for the submission driver.
func ParsePage(html string, pageIndex int) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page HTML: %w", err)
	}

	// Prefer elements inside a form; fall back to the whole document for
	// boards that render fields without a <form> wrapper.
	scope := doc.Find("form").First()
	if scope.Length() == 0 {
		scope = doc.Selection
	}

	page := &Page{Index: pageIndex}
	position := 0
	seenRadioGroups := map[string]bool{}
	checkboxGroups := countCheckboxGroups(scope)

	scope.Find("input, textarea, select").Each(func(_ int, sel *goquery.Selection) {
		tag := goquery.NodeName(sel)
		inputType := strings.ToLower(strings.TrimSpace(sel.AttrOr("type", "")))

		if tag == "input" && ignoredInputTypes[inputType] {
			return
		}
		if disabled := sel.AttrOr("disabled", "missing"); disabled != "missing" {
			return
		}

		var q *types.Question
		switch {
		case tag == "textarea", tag == "input" && textInputTypes[inputType]:
			q = newQuestion(doc, sel, tag, pageIndex, position)
			q.Kind = types.KindText

		case tag == "select":
			q = newQuestion(doc, sel, tag, pageIndex, position)
			q.Choices, q.ChoiceValues = selectChoices(sel)
			q.Kind = classifyChoices(q.Choices)

		case tag == "input" && inputType == "radio":
			name := sel.AttrOr("name", "")
			if name == "" || seenRadioGroups[name] {
				return
			}
			seenRadioGroups[name] = true
			q = newQuestion(doc, sel, tag, pageIndex, position)
			q.Choices, q.ChoiceSelectors = groupChoices(doc, scope, "radio", name)
			q.Kind = classifyChoices(q.Choices)

		case tag == "input" && inputType == "checkbox":
			name := sel.AttrOr("name", "")
			if name != "" && checkboxGroups[name] > 1 {
				if seenRadioGroups["cb:"+name] {
					return
				}
				seenRadioGroups["cb:"+name] = true
				q = newQuestion(doc, sel, tag, pageIndex, position)
				q.Choices, q.ChoiceSelectors = groupChoices(doc, scope, "checkbox", name)
				q.Kind = types.KindMultiChoice
			} else {
				q = newQuestion(doc, sel, tag, pageIndex, position)
				q.Choices = []string{"Yes", "No"}
				q.Kind = types.KindBoolean
			}

		case tag == "input" && inputType == "file":
			q = newQuestion(doc, sel, tag, pageIndex, position)
			q.Kind = types.KindFile

		default:
			page.Skipped = append(page.Skipped, SkippedField{
				Tag:    tag,
				Type:   inputType,
				Page:   pageIndex,
				Reason: "unsupported field type",
			})
			return
		}

		page.Questions = append(page.Questions, *q)
		position++
	})

	page.ContinueSelector, page.SubmitSelector, page.HasSubmit = findControls(scope)
	return page, nil
}

// newQuestion builds the common parts of a question: field identity,
// selector, label, and declared max length.
func newQuestion(doc *goquery.Document, sel *goquery.Selection, tag string, pageIndex, position int) *types.Question {
	q := &types.Question{
		ID:       uuid.NewString(),
		Page:     pageIndex,
		Position: position,
	}

	name := sel.AttrOr("name", "")
	id := sel.AttrOr("id", "")
	switch {
	case name != "":
		q.FieldID = name
		q.Selector = fmt.Sprintf(`%s[name="%s"]`, tag, name)
	case id != "":
		q.FieldID = id
		q.Selector = "#" + id
	default:
		// No stable DOM attribute: fall back to a positional hash and
		// flag the question as lower confidence.
		q.FieldID = positionalHash(tag, pageIndex, position)
		q.Selector = positionalSelector(doc, sel, tag)
		q.LowConfidence = true
	}

	q.Label = resolveLabel(doc, sel, id)
	if q.Label == "" {
		q.Label = humanize(q.FieldID)
	}

	if ml := sel.AttrOr("maxlength", ""); ml != "" {
		if n, err := strconv.Atoi(ml); err == nil && n > 0 {
			q.MaxLength = n
		}
	}
	return q
}

// resolveLabel finds the human-readable prompt for a field, in order of
// reliability: label[for], wrapping label, aria-label, placeholder.
func resolveLabel(doc *goquery.Document, sel *goquery.Selection, id string) string {
	if id != "" {
		if label := doc.Find(fmt.Sprintf(`label[for="%s"]`, id)); label.Length() > 0 {
			return cleanLabel(label.First().Text())
		}
	}
	if wrapped := sel.ParentsFiltered("label"); wrapped.Length() > 0 {
		return cleanLabel(wrapped.First().Text())
	}
	if aria := sel.AttrOr("aria-label", ""); aria != "" {
		return cleanLabel(aria)
	}
	if placeholder := sel.AttrOr("placeholder", ""); placeholder != "" {
		return cleanLabel(placeholder)
	}
	return ""
}

// selectChoices returns a select's non-placeholder option texts and
// their value attributes, aligned and in document order.
func selectChoices(sel *goquery.Selection) (choices, values []string) {
	sel.Find("option").Each(func(_ int, opt *goquery.Selection) {
		text := cleanLabel(opt.Text())
		if text == "" {
			return
		}
		value := opt.AttrOr("value", "")
		// Skip typical placeholder options.
		lower := strings.ToLower(text)
		if value == "" && (strings.HasPrefix(lower, "select") || strings.HasPrefix(lower, "choose") || lower == "--") {
			return
		}
		if value == "" {
			// Options without a value submit their text.
			value = text
		}
		choices = append(choices, text)
		values = append(values, value)
	})
	return choices, values
}

// groupChoices collects the labels and option selectors of all radios or
// checkboxes sharing a name, aligned and in document order.
func groupChoices(doc *goquery.Document, scope *goquery.Selection, inputType, name string) (choices, selectors []string) {
	scope.Find(fmt.Sprintf(`input[type="%s"][name="%s"]`, inputType, name)).Each(func(_ int, opt *goquery.Selection) {
		choices = append(choices, optionLabel(doc, opt))
		selectors = append(selectors, optionSelector(opt, inputType, name))
	})
	return choices, selectors
}

// optionSelector addresses one option control inside a named group.
func optionSelector(opt *goquery.Selection, inputType, name string) string {
	if id := opt.AttrOr("id", ""); id != "" {
		return "#" + id
	}
	if value := opt.AttrOr("value", ""); value != "" {
		return fmt.Sprintf(`input[type="%s"][name="%s"][value="%s"]`, inputType, name, value)
	}
	return fmt.Sprintf(`input[type="%s"][name="%s"]`, inputType, name)
}

// optionLabel resolves the display label of one radio/checkbox option.
func optionLabel(doc *goquery.Document, sel *goquery.Selection) string {
	if id := sel.AttrOr("id", ""); id != "" {
		if label := doc.Find(fmt.Sprintf(`label[for="%s"]`, id)); label.Length() > 0 {
			return cleanLabel(label.First().Text())
		}
	}
	if wrapped := sel.ParentsFiltered("label"); wrapped.Length() > 0 {
		return cleanLabel(wrapped.First().Text())
	}
	if value := sel.AttrOr("value", ""); value != "" {
		return value
	}
	return ""
}

// classifyChoices tags a choice set as boolean when it is a yes/no pair.
func classifyChoices(choices []string) types.QuestionKind {
	if len(choices) == 2 {
		a := strings.ToLower(strings.TrimSpace(choices[0]))
		b := strings.ToLower(strings.TrimSpace(choices[1]))
		if (a == "yes" && b == "no") || (a == "no" && b == "yes") ||
			(a == "true" && b == "false") || (a == "false" && b == "true") {
			return types.KindBoolean
		}
	}
	return types.KindChoice
}

// countCheckboxGroups counts checkboxes per name so grouped checkboxes
// become one multichoice question.
func countCheckboxGroups(scope *goquery.Selection) map[string]int {
	counts := map[string]int{}
	scope.Find(`input[type="checkbox"]`).Each(func(_ int, cb *goquery.Selection) {
		if name := cb.AttrOr("name", ""); name != "" {
			counts[name]++
		}
	})
	return counts
}

// findControls locates the page's continue and submit controls.
func findControls(scope *goquery.Selection) (continueSel, submitSel string, hasSubmit bool) {
	scope.Find(`button, input[type="submit"], input[type="button"]`).Each(func(_ int, ctl *goquery.Selection) {
		text := strings.ToLower(cleanLabel(ctl.Text()))
		if text == "" {
			text = strings.ToLower(ctl.AttrOr("value", ""))
		}
		sel := controlSelector(ctl)
		if matchesAny(text, submitWords) && submitSel == "" {
			submitSel = sel
			hasSubmit = true
			return
		}
		if matchesAny(text, continueWords) && continueSel == "" {
			continueSel = sel
		}
	})
	return continueSel, submitSel, hasSubmit
}

// controlSelector builds a selector for a button-like control.
func controlSelector(ctl *goquery.Selection) string {
	if id := ctl.AttrOr("id", ""); id != "" {
		return "#" + id
	}
	if name := ctl.AttrOr("name", ""); name != "" {
		return fmt.Sprintf(`%s[name="%s"]`, goquery.NodeName(ctl), name)
	}
	if typ := ctl.AttrOr("type", ""); typ != "" {
		return fmt.Sprintf(`%s[type="%s"]`, goquery.NodeName(ctl), typ)
	}
	return goquery.NodeName(ctl)
}

func matchesAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// positionalHash derives a low-confidence field identity for elements
// with neither a name nor an id.
func positionalHash(tag string, pageIndex, position int) string {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s:%d:%d", tag, pageIndex, position)
	return fmt.Sprintf("field-%08x", h.Sum32())
}

// positionalSelector addresses an anonymous element by its index among
// same-tag siblings in the document.
func positionalSelector(doc *goquery.Document, target *goquery.Selection, tag string) string {
	found := ""
	doc.Find(tag).EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if sel.Nodes[0] == target.Nodes[0] {
			found = fmt.Sprintf("%s:nth-of-type(%d)", tag, i+1)
			return false
		}
		return true
	})
	if found == "" {
		found = tag
	}
	return found
}

// cleanLabel collapses whitespace and trims decoration from label text.
func cleanLabel(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimSuffix(s, "*")
	return strings.TrimSpace(s)
}

// humanize turns a DOM attribute name into a readable label.
func humanize(fieldID string) string {
	replaced := strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(fieldID)
	return strings.TrimSpace(replaced)
}
