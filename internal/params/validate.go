package params

import (
	"encoding/json"
	"fmt"
)

// Validation issue codes returned to the admin surface
const (
	CodeUnknownParameter = "UNKNOWN_PARAMETER"
	CodeInvalidType      = "INVALID_TYPE"
	CodeOutOfRange       = "OUT_OF_RANGE"
	CodeValidationError  = "VALIDATION_ERROR"
)

// ValidationIssue is one human-readable validation failure with a machine
// code and an optional suggested replacement value
type ValidationIssue struct {
	Code      string      `json:"code"`
	Parameter string      `json:"parameter"`
	Message   string      `json:"message"`
	Suggested interface{} `json:"suggested_value,omitempty"`
}

// Validate checks a parameter map against the strategy's schema. A nil or
// empty result means the parameters are acceptable. Strategies without a
// schema accept any parameters.
func Validate(strategyID string, parameters map[string]interface{}) []ValidationIssue {
	schema := Schema(strategyID)
	if schema == nil {
		return nil
	}

	var issues []ValidationIssue
	for name, value := range parameters {
		ps, ok := schema[name]
		if !ok {
			issues = append(issues, ValidationIssue{
				Code:      CodeUnknownParameter,
				Parameter: name,
				Message:   fmt.Sprintf("Unknown parameter: %s", name),
			})
			continue
		}
		issues = append(issues, validateValue(name, value, ps)...)
	}
	return issues
}

func validateValue(name string, value interface{}, ps ParamSchema) []ValidationIssue {
	switch ps.Type {
	case TypeInt:
		num, ok := asNumber(value)
		if !ok || num != float64(int64(num)) {
			return []ValidationIssue{{
				Code:      CodeInvalidType,
				Parameter: name,
				Message:   fmt.Sprintf("%s must be an integer, got %v", name, value),
			}}
		}
		return checkRange(name, num, ps)
	case TypeFloat:
		num, ok := asNumber(value)
		if !ok {
			return []ValidationIssue{{
				Code:      CodeInvalidType,
				Parameter: name,
				Message:   fmt.Sprintf("%s must be a number, got %v", name, value),
			}}
		}
		return checkRange(name, num, ps)
	case TypeBool:
		if _, ok := value.(bool); !ok {
			return []ValidationIssue{{
				Code:      CodeInvalidType,
				Parameter: name,
				Message:   fmt.Sprintf("%s must be a boolean, got %v", name, value),
			}}
		}
	case TypeString:
		s, ok := value.(string)
		if !ok {
			return []ValidationIssue{{
				Code:      CodeInvalidType,
				Parameter: name,
				Message:   fmt.Sprintf("%s must be a string, got %v", name, value),
			}}
		}
		return checkAllowed(name, s, ps)
	case TypeList:
		switch value.(type) {
		case []interface{}, []string:
		default:
			return []ValidationIssue{{
				Code:      CodeInvalidType,
				Parameter: name,
				Message:   fmt.Sprintf("%s must be a list, got %v", name, value),
			}}
		}
	default:
		return []ValidationIssue{{
			Code:      CodeValidationError,
			Parameter: name,
			Message:   fmt.Sprintf("%s has unsupported schema type %q", name, ps.Type),
		}}
	}
	return nil
}

func checkRange(name string, num float64, ps ParamSchema) []ValidationIssue {
	if ps.Min != nil && num < *ps.Min {
		return []ValidationIssue{{
			Code:      CodeOutOfRange,
			Parameter: name,
			Message:   fmt.Sprintf("%s must be >= %v, got %v", name, *ps.Min, num),
			Suggested: *ps.Min,
		}}
	}
	if ps.Max != nil && num > *ps.Max {
		return []ValidationIssue{{
			Code:      CodeOutOfRange,
			Parameter: name,
			Message:   fmt.Sprintf("%s must be <= %v, got %v", name, *ps.Max, num),
			Suggested: *ps.Max,
		}}
	}
	return nil
}

func checkAllowed(name, value string, ps ParamSchema) []ValidationIssue {
	if len(ps.AllowedValues) == 0 {
		return nil
	}
	for _, allowed := range ps.AllowedValues {
		if s, ok := allowed.(string); ok && s == value {
			return nil
		}
	}
	return []ValidationIssue{{
		Code:      CodeOutOfRange,
		Parameter: name,
		Message:   fmt.Sprintf("%s must be one of %v, got %q", name, ps.AllowedValues, value),
		Suggested: ps.AllowedValues[0],
	}}
}

// asNumber accepts the numeric shapes JSON decoding and Go literals produce
func asNumber(v interface{}) (float64, bool) {
	switch vv := v.(type) {
	case float64:
		return vv, true
	case float32:
		return float64(vv), true
	case int:
		return float64(vv), true
	case int32:
		return float64(vv), true
	case int64:
		return float64(vv), true
	case json.Number:
		fv, err := vv.Float64()
		return fv, err == nil
	}
	return 0, false
}
