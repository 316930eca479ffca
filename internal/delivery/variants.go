package delivery

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"path"
	"strings"

	"github.com/edupulse/assessment-delivery/internal/models"
)

// BlankMarker is the positional marker inside a fill-in-blank template.
// Blanks are matched to markers by ascending position index.
const BlankMarker = "___"

// variantPolicy is the per-type contract: decode checks the payload shape,
// isEmpty implements the completeness predicate, validate enforces
// format-specific constraints before a payload may reach the answer store,
// and transform (optional) rewrites the payload on store (e.g. the fill-blank
// formatted reconstruction).
type variantPolicy struct {
	decode    func(raw json.RawMessage) error
	isEmpty   func(raw json.RawMessage) bool
	validate  func(q *models.Question, raw json.RawMessage) error
	transform func(q *models.Question, raw json.RawMessage) (json.RawMessage, error)
}

// variantPolicies is the single exhaustive dispatch table over the closed set
// of question types. Adding a twelfth type is a one-place change here plus
// the tag in models.
var variantPolicies = map[models.QuestionType]variantPolicy{
	models.SingleChoice: {
		decode:   decodeAs[models.ChoiceAnswer],
		isEmpty:  choiceEmpty,
		validate: validateSingleChoice,
	},
	models.MultipleChoice: {
		decode:   decodeAs[models.ChoiceAnswer],
		isEmpty:  choiceEmpty,
		validate: validateMultipleChoice,
	},
	models.TrueFalse: {
		decode:  decodeAs[models.TrueFalseAnswer],
		isEmpty: trueFalseEmpty,
	},
	models.ShortAnswer: {
		decode:  decodeAs[models.TextAnswer],
		isEmpty: textEmpty,
	},
	models.LongAnswer: {
		decode:  decodeAs[models.TextAnswer],
		isEmpty: textEmpty,
	},
	models.Matching: {
		decode:   decodeAs[models.MatchingAnswer],
		isEmpty:  matchingEmpty,
		validate: validateMatching,
	},
	models.Ordering: {
		decode:   decodeAs[models.OrderingAnswer],
		isEmpty:  orderingEmpty,
		validate: validateOrdering,
	},
	models.FillBlank: {
		decode:    decodeAs[models.FillBlankAnswer],
		isEmpty:   fillBlankEmpty,
		validate:  validateFillBlank,
		transform: transformFillBlank,
	},
	models.Numeric: {
		decode:   decodeAs[models.NumericAnswer],
		isEmpty:  numericEmpty,
		validate: validateNumeric,
	},
	models.FileUpload: {
		decode:   decodeAs[models.FileUploadAnswer],
		isEmpty:  fileUploadEmpty,
		validate: validateFileUpload,
	},
	// Unsupported/other collects no answers and never blocks submission.
	models.Unsupported: {
		decode:  func(json.RawMessage) error { return ErrUnsupportedAnswer },
		isEmpty: func(json.RawMessage) bool { return false },
	},
}

func policyFor(t models.QuestionType) (variantPolicy, bool) {
	p, ok := variantPolicies[t]
	return p, ok
}

// IsAnswerEmpty applies the per-type emptiness predicate to a stored payload.
// Unknown types are treated as non-blocking.
func IsAnswerEmpty(t models.QuestionType, raw json.RawMessage) bool {
	p, ok := variantPolicies[t]
	if !ok {
		return false
	}
	if len(raw) == 0 {
		return true
	}
	return p.isEmpty(raw)
}

func decodeAs[T any](raw json.RawMessage) error {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}
	return nil
}

// ===== EMPTINESS PREDICATES =====

func choiceEmpty(raw json.RawMessage) bool {
	var a models.ChoiceAnswer
	if json.Unmarshal(raw, &a) != nil {
		return true
	}
	return len(a.SelectedOptions) == 0
}

func trueFalseEmpty(raw json.RawMessage) bool {
	var a models.TrueFalseAnswer
	if json.Unmarshal(raw, &a) != nil {
		return true
	}
	return a.Value == nil
}

func textEmpty(raw json.RawMessage) bool {
	var a models.TextAnswer
	if json.Unmarshal(raw, &a) != nil {
		return true
	}
	return strings.TrimSpace(a.Text) == ""
}

func fillBlankEmpty(raw json.RawMessage) bool {
	var a models.FillBlankAnswer
	if json.Unmarshal(raw, &a) != nil {
		return true
	}
	for _, text := range a.Blanks {
		if strings.TrimSpace(text) != "" {
			return false
		}
	}
	return true
}

func matchingEmpty(raw json.RawMessage) bool {
	var a models.MatchingAnswer
	if json.Unmarshal(raw, &a) != nil {
		return true
	}
	return len(a.Pairs) == 0
}

func orderingEmpty(raw json.RawMessage) bool {
	var a models.OrderingAnswer
	if json.Unmarshal(raw, &a) != nil {
		return true
	}
	return len(a.Order) == 0
}

func numericEmpty(raw json.RawMessage) bool {
	var a models.NumericAnswer
	if json.Unmarshal(raw, &a) != nil {
		return true
	}
	return a.Value == nil || math.IsNaN(*a.Value)
}

func fileUploadEmpty(raw json.RawMessage) bool {
	var a models.FileUploadAnswer
	if json.Unmarshal(raw, &a) != nil {
		return true
	}
	return a.URL == ""
}

// ===== PER-TYPE VALIDATION =====

func validateSingleChoice(q *models.Question, raw json.RawMessage) error {
	var a models.ChoiceAnswer
	if err := json.Unmarshal(raw, &a); err != nil {
		return fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}
	if len(a.SelectedOptions) > 1 {
		return &InvalidLocalInputError{QuestionID: q.ID, Reason: "single choice accepts at most one selection"}
	}
	return validateOptionIDs(q, a.SelectedOptions)
}

func validateMultipleChoice(q *models.Question, raw json.RawMessage) error {
	var a models.ChoiceAnswer
	if err := json.Unmarshal(raw, &a); err != nil {
		return fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}
	seen := make(map[string]bool, len(a.SelectedOptions))
	for _, id := range a.SelectedOptions {
		if seen[id] {
			return &InvalidLocalInputError{QuestionID: q.ID, Reason: fmt.Sprintf("option %q selected twice", id)}
		}
		seen[id] = true
	}
	return validateOptionIDs(q, a.SelectedOptions)
}

func validateOptionIDs(q *models.Question, selected []string) error {
	var format models.ChoiceFormat
	if err := json.Unmarshal(q.Format, &format); err != nil {
		return fmt.Errorf("malformed choice format for question %d: %w", q.ID, err)
	}
	valid := make(map[string]bool, len(format.Options))
	for _, opt := range format.Options {
		valid[opt.ID] = true
	}
	for _, id := range selected {
		if !valid[id] {
			return &InvalidLocalInputError{QuestionID: q.ID, Reason: fmt.Sprintf("unknown option %q", id)}
		}
	}
	return nil
}

func validateMatching(q *models.Question, raw json.RawMessage) error {
	var a models.MatchingAnswer
	if err := json.Unmarshal(raw, &a); err != nil {
		return fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}
	var format models.MatchingFormat
	if err := json.Unmarshal(q.Format, &format); err != nil {
		return fmt.Errorf("malformed matching format for question %d: %w", q.ID, err)
	}

	prompts := make(map[string]bool, len(format.Prompts))
	for _, item := range format.Prompts {
		prompts[item.ID] = true
	}
	responses := make(map[string]bool, len(format.Responses))
	for _, item := range format.Responses {
		responses[item.ID] = true
	}

	for promptID, responseID := range a.Pairs {
		if !prompts[promptID] {
			return &InvalidLocalInputError{QuestionID: q.ID, Reason: fmt.Sprintf("unknown prompt %q", promptID)}
		}
		if !responses[responseID] {
			return &InvalidLocalInputError{QuestionID: q.ID, Reason: fmt.Sprintf("unknown response %q", responseID)}
		}
	}
	return nil
}

func validateOrdering(q *models.Question, raw json.RawMessage) error {
	var a models.OrderingAnswer
	if err := json.Unmarshal(raw, &a); err != nil {
		return fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}
	var format models.OrderingFormat
	if err := json.Unmarshal(q.Format, &format); err != nil {
		return fmt.Errorf("malformed ordering format for question %d: %w", q.ID, err)
	}

	valid := make(map[string]bool, len(format.Items))
	for _, item := range format.Items {
		valid[item.ID] = true
	}
	seen := make(map[string]bool, len(a.Order))
	for _, id := range a.Order {
		if !valid[id] {
			return &InvalidLocalInputError{QuestionID: q.ID, Reason: fmt.Sprintf("unknown item %q", id)}
		}
		if seen[id] {
			return &InvalidLocalInputError{QuestionID: q.ID, Reason: fmt.Sprintf("item %q listed twice", id)}
		}
		seen[id] = true
	}
	return nil
}

func validateFillBlank(q *models.Question, raw json.RawMessage) error {
	var a models.FillBlankAnswer
	if err := json.Unmarshal(raw, &a); err != nil {
		return fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}
	var format models.FillBlankFormat
	if err := json.Unmarshal(q.Format, &format); err != nil {
		return fmt.Errorf("malformed fill-blank format for question %d: %w", q.ID, err)
	}

	valid := make(map[string]bool, len(format.Blanks))
	for _, blank := range format.Blanks {
		valid[blank.ID] = true
	}
	for blankID := range a.Blanks {
		if !valid[blankID] {
			return &InvalidLocalInputError{QuestionID: q.ID, Reason: fmt.Sprintf("unknown blank %q", blankID)}
		}
	}
	return nil
}

func transformFillBlank(q *models.Question, raw json.RawMessage) (json.RawMessage, error) {
	var a models.FillBlankAnswer
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}
	var format models.FillBlankFormat
	if err := json.Unmarshal(q.Format, &format); err != nil {
		return nil, fmt.Errorf("malformed fill-blank format for question %d: %w", q.ID, err)
	}

	a.Formatted = FormatFillBlank(&format, a.Blanks)
	return json.Marshal(a)
}

// FormatFillBlank substitutes blank answers into the template, matching blanks
// to markers by ascending position index. Unanswered blanks keep the marker.
func FormatFillBlank(format *models.FillBlankFormat, blanks map[string]string) string {
	ordered := make([]models.BlankDef, len(format.Blanks))
	copy(ordered, format.Blanks)
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j].Position < ordered[j-1].Position; j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}

	parts := strings.Split(format.Template, BlankMarker)
	var b strings.Builder
	for i, part := range parts {
		b.WriteString(part)
		if i >= len(parts)-1 {
			break
		}
		if i < len(ordered) {
			if text, ok := blanks[ordered[i].ID]; ok && strings.TrimSpace(text) != "" {
				b.WriteString(text)
				continue
			}
		}
		b.WriteString(BlankMarker)
	}
	return b.String()
}

func validateNumeric(q *models.Question, raw json.RawMessage) error {
	var a models.NumericAnswer
	if err := json.Unmarshal(raw, &a); err != nil {
		return fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}
	if a.Value == nil {
		return nil // clearing an answer is always allowed
	}
	var format models.NumericFormat
	if len(q.Format) > 0 {
		if err := json.Unmarshal(q.Format, &format); err != nil {
			return fmt.Errorf("malformed numeric format for question %d: %w", q.ID, err)
		}
	}

	value := *a.Value
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return &InvalidLocalInputError{QuestionID: q.ID, Reason: "value is not a number"}
	}
	if format.Min != nil && value < *format.Min {
		return &InvalidLocalInputError{QuestionID: q.ID, Reason: fmt.Sprintf("value %v below minimum %v", value, *format.Min)}
	}
	if format.Max != nil && value > *format.Max {
		return &InvalidLocalInputError{QuestionID: q.ID, Reason: fmt.Sprintf("value %v above maximum %v", value, *format.Max)}
	}
	return nil
}

func validateFileUpload(q *models.Question, raw json.RawMessage) error {
	var a models.FileUploadAnswer
	if err := json.Unmarshal(raw, &a); err != nil {
		return fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}
	if a.URL == "" {
		return nil // clearing an answer is always allowed
	}
	var format models.FileUploadFormat
	if len(q.Format) > 0 {
		if err := json.Unmarshal(q.Format, &format); err != nil {
			return fmt.Errorf("malformed file-upload format for question %d: %w", q.ID, err)
		}
	}

	if len(format.AcceptedMimeTypes) > 0 && !containsFold(format.AcceptedMimeTypes, a.MimeType) {
		return &InvalidLocalInputError{QuestionID: q.ID, Reason: fmt.Sprintf("file type %q is not allowed", a.MimeType)}
	}
	if len(format.AcceptedExtensions) > 0 {
		ext := strings.TrimPrefix(path.Ext(a.FileName), ".")
		if !containsFold(format.AcceptedExtensions, ext) {
			return &InvalidLocalInputError{QuestionID: q.ID, Reason: fmt.Sprintf("file extension %q is not allowed", ext)}
		}
	}
	if format.MaxSizeBytes > 0 && a.SizeBytes > format.MaxSizeBytes {
		return &InvalidLocalInputError{QuestionID: q.ID, Reason: fmt.Sprintf("file exceeds maximum size of %d bytes", format.MaxSizeBytes)}
	}
	return nil
}

func containsFold(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(strings.TrimPrefix(item, "."), strings.TrimPrefix(value, ".")) {
			return true
		}
	}
	return false
}

// ===== EDITOR PRESENTATION HELPERS =====

// ShuffledResponses shuffles the matching response column. Called once per
// question at render time so the correct pairing never leaks through
// positional order, and never re-shuffled on re-render.
func ShuffledResponses(format *models.MatchingFormat, rng *rand.Rand) []models.MatchItem {
	out := make([]models.MatchItem, len(format.Responses))
	copy(out, format.Responses)
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// InitialOrder produces the one-time shuffled presentation order of an
// ordering question's item set.
func InitialOrder(format *models.OrderingFormat, rng *rand.Rand) []string {
	out := make([]string, len(format.Items))
	for i, item := range format.Items {
		out[i] = item.ID
	}
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// MoveItem swaps the item at index with its neighbor above (up) or below.
// Reordering is adjacent-swap only, O(1) per step and unambiguous. Returns
// false for a no-op at the boundary.
func MoveItem(order []string, index int, up bool) bool {
	if up {
		if index <= 0 || index >= len(order) {
			return false
		}
		order[index], order[index-1] = order[index-1], order[index]
		return true
	}
	if index < 0 || index >= len(order)-1 {
		return false
	}
	order[index], order[index+1] = order[index+1], order[index]
	return true
}
