package form

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/fmuoria/recruitment-scoring/internal/models"
)

var alphaParen = regexp.MustCompile(`^[A-Za-z ()]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	must(v.RegisterValidation("numgte", numCompare(func(a, b float64) bool { return a >= b })))
	must(v.RegisterValidation("numlte", numCompare(func(a, b float64) bool { return a <= b })))
	must(v.RegisterValidation("maxdp", maxDecimals))
	must(v.RegisterValidation("alphaparen", func(fl validator.FieldLevel) bool {
		return alphaParen.MatchString(fl.Field().String())
	}))
	return v
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func numCompare(ok func(a, b float64) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		v, err := strconv.ParseFloat(strings.TrimSpace(fl.Field().String()), 64)
		if err != nil {
			return false
		}
		bound, err := strconv.ParseFloat(fl.Param(), 64)
		if err != nil {
			return false
		}
		return ok(v, bound)
	}
}

func maxDecimals(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	s := strings.TrimSpace(fl.Field().String())
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return true
	}
	return len(s)-dot-1 <= limit
}

// Rule is the edit rule of one parameter slot
type Rule struct {
	Required    bool
	Numeric     bool
	Min         *float64
	Max         *float64
	MaxDecimals int // only meaningful when Numeric; 0 means unrestricted
	Date        bool
	Pattern     string // name of a registered pattern tag
}

func float(v float64) *float64 { return &v }

// deriveRule builds the rule for param inside a record
func deriveRule(param models.ParameterNode, selection Selection, selected bool) Rule {
	var r Rule
	r.Required = param.Mandatory && (selection != SelectionVariable || selected)

	switch {
	case param.IsCalculationColumn():
		r.Numeric = true
		r.Min, r.Max = float(0), float(100)
		r.MaxDecimals = 2
	case param.DataType == models.DataNumeric:
		r.Numeric = true
		r.Min = float(0)
	case param.DataType == models.DataDate || param.Control == models.ControlDate:
		r.Date = true
	case param.DataType == models.DataText && param.Control == models.ControlAlphaText:
		r.Pattern = "alphaparen"
	}
	return r
}

// Tag renders the rule as a validator tag for string values
func (r Rule) Tag() string {
	var parts []string
	if r.Required {
		parts = append(parts, "required")
	} else {
		parts = append(parts, "omitempty")
	}
	if r.Numeric {
		parts = append(parts, "numeric")
		if r.Min != nil {
			parts = append(parts, "numgte="+strconv.FormatFloat(*r.Min, 'f', -1, 64))
		}
		if r.Max != nil {
			parts = append(parts, "numlte="+strconv.FormatFloat(*r.Max, 'f', -1, 64))
		}
		if r.MaxDecimals > 0 {
			parts = append(parts, "maxdp="+strconv.Itoa(r.MaxDecimals))
		}
	}
	if r.Date {
		parts = append(parts, "datetime="+models.DateLayout)
	}
	if r.Pattern != "" {
		parts = append(parts, r.Pattern)
	}
	return strings.Join(parts, ",")
}

// Check validates value and returns a human readable reason on failure
func (r Rule) Check(value string) error {
	err := validate.Var(strings.TrimSpace(value), r.Tag())
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return err
	}
	switch fe := errs[0]; fe.Tag() {
	case "required":
		return fmt.Errorf("value is required")
	case "numeric":
		return fmt.Errorf("value must be a number")
	case "numgte":
		return fmt.Errorf("value must be at least %s", fe.Param())
	case "numlte":
		return fmt.Errorf("value must be at most %s", fe.Param())
	case "maxdp":
		return fmt.Errorf("value may have at most %s decimal places", fe.Param())
	case "datetime":
		return fmt.Errorf("value must be a date in YYYY-MM-DD format")
	case "alphaparen":
		return fmt.Errorf("value may contain only letters, spaces and parentheses")
	default:
		return fmt.Errorf("value failed %s", fe.Tag())
	}
}
