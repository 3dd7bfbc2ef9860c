package cucumber

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Expand replaces ${...} references in value:
//
//	${name}            scenario variable
//	${name.key.0}      nested map key or slice index of a variable
//	${response}        last response body as JSON
//	${response.a[0]}   gojq selection on the last response body
//	${"literal"}       a literal, useful with pipes
//	${x | pipe}        transformed by a pipe: json, string, query_escape
func (s *TestScenario) Expand(value string) (result string, rerr error) {
	return os.Expand(value, func(name string) string {
		resolved, err := s.Resolve(name)
		if err != nil {
			rerr = err
			return ""
		}
		str, err := toString(resolved)
		if err != nil {
			rerr = fmt.Errorf("${%s}: %w", name, err)
			return ""
		}
		return str
	}), rerr
}

// Resolve evaluates a ${...} reference without converting it to a string.
func (s *TestScenario) Resolve(name string) (interface{}, error) {
	pipes := strings.Split(name, "|")
	for i := range pipes {
		pipes[i] = strings.TrimSpace(pipes[i])
	}
	name, pipes = pipes[0], pipes[1:]

	value, err := s.resolveValue(name)
	if err != nil {
		return nil, err
	}
	for _, pipe := range pipes {
		fn := pipeFunctions[pipe]
		if fn == nil {
			return nil, fmt.Errorf("unknown pipe: %s", pipe)
		}
		if value, err = fn(value); err != nil {
			return nil, err
		}
	}
	return value, nil
}

func (s *TestScenario) resolveValue(name string) (interface{}, error) {
	if len(name) >= 2 && name[0] == '"' && name[len(name)-1] == '"' {
		return name[1 : len(name)-1], nil
	}
	if name == "response" {
		return s.Session().RespJSON()
	}
	if strings.HasPrefix(name, "response.") || strings.HasPrefix(name, "response[") {
		selector := strings.TrimPrefix(name, "response")
		if strings.HasPrefix(selector, "[") {
			selector = "." + selector
		}
		return s.selectFromResponse(selector)
	}

	parts := strings.Split(name, ".")
	value, found := s.Variables[parts[0]]
	if !found {
		return nil, fmt.Errorf("variable ${%s} not defined yet", parts[0])
	}
	for _, part := range parts[1:] {
		var err error
		if value, err = selectChild(value, part); err != nil {
			return nil, fmt.Errorf("${%s}: %w", name, err)
		}
	}
	return value, nil
}

// selectChild steps into decoded JSON: a map key or a slice index.
func selectChild(value interface{}, key string) (interface{}, error) {
	switch v := value.(type) {
	case map[string]interface{}:
		child, ok := v[key]
		if !ok {
			return nil, fmt.Errorf("map key %s not found", key)
		}
		return child, nil
	case []interface{}:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(v) {
			return nil, fmt.Errorf("slice index %s out of range", key)
		}
		return v[i], nil
	}
	return nil, fmt.Errorf("can't select %s from %T", key, value)
}

var pipeFunctions = map[string]func(interface{}) (interface{}, error){
	"json": func(value interface{}) (interface{}, error) {
		data, err := json.MarshalIndent(value, "", "  ")
		return string(data), err
	},
	"string": func(value interface{}) (interface{}, error) {
		return fmt.Sprintf("%v", value), nil
	},
	"query_escape": func(value interface{}) (interface{}, error) {
		return url.QueryEscape(fmt.Sprintf("%v", value)), nil
	},
}

func toString(value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
