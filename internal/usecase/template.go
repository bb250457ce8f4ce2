package usecase

import (
	"regexp"
	"strings"
)

// Fallback replaces placeholders whose value is missing or blank.
const Fallback = "未設定"

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z_]+)\}`)

// RenderTemplate fills {key} placeholders from values. Keys present in values
// but blank render as Fallback; keys absent from values are left untouched.
func RenderTemplate(tmpl string, values map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		key := m[1 : len(m)-1]
		v, ok := values[key]
		if !ok {
			return m
		}
		if strings.TrimSpace(v) == "" {
			return Fallback
		}
		return v
	})
}

func messageValues(name, at, hotel string) map[string]string {
	return map[string]string{
		"name":  name,
		"time":  at,
		"hotel": hotel,
	}
}
