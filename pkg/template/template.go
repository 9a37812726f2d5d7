// Package template renders dynamic values in step configuration, used by
// webhook payloads and notification contexts. Templates are standard Go
// text/template over the record snapshot and execution variables.
package template

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"
)

// Render executes a template against data. The rendered string is coerced
// back into a JSON value when it parses as one, so `{{.record.amount}}`
// stays a number in the payload.
func Render(templateStr string, data any) (any, error) {
	tmpl, err := template.
		New("payload").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"rand": func(max int) int {
				if max <= 0 {
					return 0
				}

				num := make([]byte, 1)
				if _, err := rand.Read(num); err != nil {
					return 0
				}

				return int(num[0]) % max
			},
		}).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return nil, fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	result := strings.TrimSpace(buf.String())

	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any
		if err := json.Unmarshal([]byte(result), &jsonResult); err == nil {
			return jsonResult, nil
		}
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

// NeedsTemplating reports whether a string carries template syntax.
func NeedsTemplating(input string) bool {
	return strings.Contains(input, "{{")
}

// RenderMap renders every templated string value of a payload map against
// the given data, leaving everything else untouched. Nested maps are
// rendered recursively.
func RenderMap(payload map[string]any, data any) (map[string]any, error) {
	rendered := make(map[string]any, len(payload))

	for key, value := range payload {
		switch v := value.(type) {
		case string:
			if !NeedsTemplating(v) {
				rendered[key] = v

				continue
			}

			result, err := Render(v, data)
			if err != nil {
				return nil, fmt.Errorf("payload key %q: %w", key, err)
			}

			rendered[key] = result
		case map[string]any:
			nested, err := RenderMap(v, data)
			if err != nil {
				return nil, err
			}

			rendered[key] = nested
		default:
			rendered[key] = value
		}
	}

	return rendered, nil
}
