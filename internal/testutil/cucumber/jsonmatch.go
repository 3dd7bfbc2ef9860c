package cucumber

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// JSONMustMatch fails unless actual and expected decode to equal values.
// ${...} references in expected are expanded first.
func (s *TestScenario) JSONMustMatch(actual, expected string) error {
	actualParsed, expectedParsed, err := s.parseJSONPair(actual, expected)
	if err != nil {
		return err
	}
	if reflect.DeepEqual(expectedParsed, actualParsed) {
		return nil
	}
	return fmt.Errorf("actual does not match expected, diff:\n%s",
		unifiedDiff(indentJSON(expectedParsed), indentJSON(actualParsed)))
}

// JSONMustContain fails unless every field of expected is present in actual
// with an equal value. Arrays must have the same length.
func (s *TestScenario) JSONMustContain(actual, expected string) error {
	actualParsed, expectedParsed, err := s.parseJSONPair(actual, expected)
	if err != nil {
		return err
	}
	if err := jsonSubset(expectedParsed, actualParsed, "$"); err != nil {
		return fmt.Errorf("actual does not contain expected.\n  mismatch: %s\n  expected:\n%s\n  actual:\n%s",
			err, indentJSON(expectedParsed), indentJSON(actualParsed))
	}
	return nil
}

func (s *TestScenario) parseJSONPair(actual, expected string) (interface{}, interface{}, error) {
	var actualParsed interface{}
	if err := json.Unmarshal([]byte(actual), &actualParsed); err != nil {
		return nil, nil, fmt.Errorf("error parsing actual json: %w\njson was:\n%s", err, actual)
	}
	expanded, err := s.Expand(expected)
	if err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(expanded) == "" {
		return nil, nil, fmt.Errorf("expected json not specified, actual json was:\n%s", indentJSON(actualParsed))
	}
	var expectedParsed interface{}
	if err := json.Unmarshal([]byte(expanded), &expectedParsed); err != nil {
		return nil, nil, fmt.Errorf("error parsing expected json: %w\njson was:\n%s", err, expanded)
	}
	return actualParsed, expectedParsed, nil
}

func jsonSubset(expected, actual interface{}, path string) error {
	switch exp := expected.(type) {
	case map[string]interface{}:
		act, ok := actual.(map[string]interface{})
		if !ok {
			return fmt.Errorf("at %s: expected object, got %T", path, actual)
		}
		for key, expVal := range exp {
			actVal, exists := act[key]
			if !exists {
				return fmt.Errorf("at %s: missing key %q", path, key)
			}
			if err := jsonSubset(expVal, actVal, path+"."+key); err != nil {
				return err
			}
		}
	case []interface{}:
		act, ok := actual.([]interface{})
		if !ok {
			return fmt.Errorf("at %s: expected array, got %T", path, actual)
		}
		if len(exp) != len(act) {
			return fmt.Errorf("at %s: expected array length %d, got %d", path, len(exp), len(act))
		}
		for i := range exp {
			if err := jsonSubset(exp[i], act[i], fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	default:
		if !reflect.DeepEqual(expected, actual) {
			return fmt.Errorf("at %s: expected %v (%T), got %v (%T)", path, expected, expected, actual, actual)
		}
	}
	return nil
}

func textMustMatch(actual, expected string) error {
	if expected == actual {
		return nil
	}
	return fmt.Errorf("actual does not match expected, diff:\n%s", unifiedDiff(expected, actual))
}

func unifiedDiff(expected, actual string) string {
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected),
		B:        difflib.SplitLines(actual),
		FromFile: "Expected",
		ToFile:   "Actual",
		Context:  1,
	})
	return diff
}

func indentJSON(v interface{}) string {
	data, _ := json.MarshalIndent(v, "", "  ")
	return string(data)
}
