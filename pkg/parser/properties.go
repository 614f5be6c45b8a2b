package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// comodelProperty is the conventional name given to the positional
// target-identity argument of relational field constructors.
const comodelProperty = "comodel_name"

var reIdentifier = regexp.MustCompile(`^\w+$`)

// ParseProperties splits field constructor argument text into properties.
//
// Arguments are split on top-level commas (nesting inside parentheses,
// brackets, braces, and quoted strings is respected). An argument containing
// "name=value" with an identifier left side becomes a named property; the
// first bare positional argument becomes the conventional comodel_name
// property. Further positionals are dropped — the declarations this scanner
// targets never carry more than one.
func ParseProperties(args string) []FieldProperty {
	var properties []FieldProperty
	sawPositional := false

	for _, arg := range splitTopLevel(args) {
		arg = strings.TrimSpace(arg)
		if arg == "" {
			continue
		}

		if name, value, ok := splitKeyword(arg); ok {
			properties = append(properties, FieldProperty{Name: name, Value: CoerceValue(value)})
			continue
		}

		if !sawPositional {
			properties = append(properties, FieldProperty{Name: comodelProperty, Value: CoerceValue(arg)})
			sawPositional = true
		}
	}

	return properties
}

// splitKeyword splits "name=value" when name is a bare identifier.
func splitKeyword(arg string) (name, value string, ok bool) {
	idx := strings.Index(arg, "=")
	if idx <= 0 {
		return "", "", false
	}
	name = strings.TrimSpace(arg[:idx])
	if !reIdentifier.MatchString(name) {
		return "", "", false
	}
	return name, strings.TrimSpace(arg[idx+1:]), true
}

// splitTopLevel splits on commas outside any nesting or quoted string.
func splitTopLevel(args string) []string {
	var parts []string
	depth := 0
	var quote byte
	start := 0

	for i := 0; i < len(args); i++ {
		c := args[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, args[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, args[start:])
	return parts
}

// CoerceValue maps a raw argument text to a typed value: quoted strings lose
// their quotes, True/False become bool, digit runs become int64, digit.digit
// becomes float64. Anything else stays raw text.
func CoerceValue(raw string) any {
	raw = strings.TrimSpace(raw)

	if len(raw) >= 2 {
		first, last := raw[0], raw[len(raw)-1]
		if (first == '\'' && last == '\'') || (first == '"' && last == '"') {
			return raw[1 : len(raw)-1]
		}
	}

	switch raw {
	case "True":
		return true
	case "False":
		return false
	}

	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return v
	}
	if isFloatLiteral(raw) {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	}

	return raw
}

// isFloatLiteral accepts only the digit-dot-digit shape, not the full Go
// float syntax, so values like "1e5" stay raw text.
func isFloatLiteral(raw string) bool {
	dot := strings.Index(raw, ".")
	if dot <= 0 || dot == len(raw)-1 {
		return false
	}
	for i, r := range raw {
		if i == dot {
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
