package schema

import (
	"strings"
	"unicode"

	pluralizer "github.com/gertd/go-pluralize"
)

// pluralizeClient is a singleton instance for consistent pluralization behavior.
var pluralizeClient = pluralizer.NewClient()

// ColumnName converts a Go field name to its snake_case column name.
func ColumnName(fieldName string) string {
	return toSnakeCase(fieldName)
}

// TableName converts a Go struct name to a plural snake_case table name:
// User -> users, BlogPost -> blog_posts, Person -> people.
func TableName(structName string) string {
	return pluralize(toSnakeCase(structName))
}

// toSnakeCase converts any naming convention to snake_case.
// Handles acronyms and digits: UserID -> user_id, HTTPServer -> http_server.
func toSnakeCase(name string) string {
	if name == "" {
		return ""
	}

	switch name {
	case "ID":
		return "id"
	case "UUID":
		return "uuid"
	case "URL":
		return "url"
	case "API":
		return "api"
	case "JSON":
		return "json"
	case "SQL":
		return "sql"
	}

	// Already snake_case
	if strings.Contains(name, "_") && !hasUpperCase(name) {
		return name
	}

	var result strings.Builder
	result.Grow(len(name) + 8)

	runes := []rune(name)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			// aB -> a_b, a1B -> a1_b, ABc -> a_bc
			if unicode.IsLower(prev) || unicode.IsDigit(prev) ||
				(unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1])) {
				result.WriteByte('_')
			}
		}
		result.WriteRune(unicode.ToLower(r))
	}

	return result.String()
}

// pluralize converts the last word of a snake_case name to its plural form.
func pluralize(name string) string {
	if name == "" {
		return ""
	}

	head, last := "", name
	if i := strings.LastIndexByte(name, '_'); i >= 0 {
		head, last = name[:i+1], name[i+1:]
	}

	switch last {
	case "person":
		return head + "people"
	case "datum":
		return head + "data"
	case "criterion":
		return head + "criteria"
	}

	return head + pluralizeClient.Pluralize(last, 2, false)
}

// hasUpperCase returns true if the string contains any uppercase letters.
func hasUpperCase(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}
