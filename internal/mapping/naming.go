package mapping

import (
	"strings"
	"unicode"
)

// candidateName derives a human-readable snake_case name for an operation.
// The result is a candidate only; the engine's conflict resolver assigns
// the final name.
func candidateName(op *Operation) string {
	if op.NameOverride != "" {
		return op.NameOverride
	}
	if op.ID != "" {
		return toSnake(op.ID)
	}
	return toSnake(strings.ToLower(op.Method) + "_" + pathName(op.Path))
}

// pathName flattens a path template into a name fragment: /pets/{petId}
// becomes pets_petId.
func pathName(path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "root"
	}
	name := strings.Join(strings.Split(trimmed, "/"), "_")
	name = strings.ReplaceAll(name, "{", "")
	name = strings.ReplaceAll(name, "}", "")
	return name
}

// pathDepth counts the segments of a path template, used as the final
// disambiguation suffix.
func pathDepth(path string) int {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return 0
	}
	return len(strings.Split(trimmed, "/"))
}

// toSnake folds camelCase and separator characters into snake_case:
// getPetById -> get_pet_by_id, list-Pets -> list_pets.
func toSnake(s string) string {
	runes := []rune(s)
	var out []rune

	for i, r := range runes {
		switch {
		case unicode.IsUpper(r):
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))) {
				out = append(out, '_')
			}
			out = append(out, unicode.ToLower(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}

	var sb strings.Builder
	prevSep := true
	for _, r := range out {
		if r == '_' {
			if !prevSep {
				sb.WriteRune('_')
				prevSep = true
			}
			continue
		}
		sb.WriteRune(r)
		prevSep = false
	}
	return strings.TrimRight(sb.String(), "_")
}
