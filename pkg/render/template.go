package render

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jlindqvist/chorogram/pkg/topo"
)

var tokenPattern = regexp.MustCompile(`\[\[(\w+)\]\]`)

// RenderTemplate substitutes [[token]] placeholders from a property bag.
// Each distinct token is processed once and replaces its first occurrence;
// tokens with no matching property stay in the template verbatim.
func RenderTemplate(template string, props topo.Properties) string {
	out := template
	seen := make(map[string]bool)
	for _, match := range tokenPattern.FindAllStringSubmatch(template, -1) {
		token, name := match[0], match[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		value, ok := props[name]
		if !ok {
			continue
		}
		out = strings.Replace(out, token, formatValue(value), 1)
	}
	return out
}

// formatValue renders a property value for text output, avoiding the
// trailing zeros fmt prints for whole floats.
func formatValue(v any) string {
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%v", v)
}
