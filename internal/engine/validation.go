package engine

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/domino14/review_engine/internal/review"
)

// ErrInvalidRequest matches every ValidationError.
var ErrInvalidRequest = errors.New("invalid request")

// ValidationError lists what was wrong with a request that was rejected
// before reaching the review service.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid session configuration: " + strings.Join(e.Problems, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRequest
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(validateDifficultyRange, review.StartRequest{})
	return v
}

func validateDifficultyRange(sl validator.StructLevel) {
	req := sl.Current().Interface().(review.StartRequest)
	if req.DifficultyRange == nil {
		return
	}
	lo, hi := req.DifficultyRange[0], req.DifficultyRange[1]
	if lo < 0 || hi < lo {
		sl.ReportError(req.DifficultyRange, "DifficultyRange", "difficultyRange", "range", "")
	}
}

func (e *Engine) validateStart(req *review.StartRequest) error {
	err := e.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Problems: []string{err.Error()}}
	}
	problems := make([]string, 0, len(verrs))
	seen := map[string]bool{}
	for _, fe := range verrs {
		p := describe(fe)
		if !seen[p] {
			seen[p] = true
			problems = append(problems, p)
		}
	}
	return &ValidationError{Problems: problems}
}

func describe(fe validator.FieldError) string {
	field := fe.StructField()
	// Element errors come back as e.g. "IncludeWordTypes[1]".
	if i := strings.IndexByte(field, '['); i >= 0 {
		field = field[:i]
	}
	switch field {
	case "Mode":
		return "invalid review mode"
	case "Limit":
		return "limit must be between 1 and 100"
	case "IncludeWordListIDs":
		return "cannot specify both include and exclude word lists"
	case "IncludeWordTypes":
		if fe.Tag() == "excluded_with" {
			return "cannot specify both include and exclude word types"
		}
		return "invalid word type"
	case "ExcludeWordTypes":
		return "invalid word type"
	case "DifficultyRange":
		return "difficulty range must be non-negative and ordered"
	}
	return fe.Error()
}
