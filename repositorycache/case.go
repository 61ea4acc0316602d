package repositorycache

import (
	"reflect"
	"strings"
	"unicode"
)

// namespaceOf returns the cache namespace of T: its snake_case type name.
func namespaceOf[T any]() string {
	return toSnake(reflect.TypeOf((*T)(nil)).Elem().Name())
}

// resultTypeName names the value a read produces. Pointers are transparent,
// slices are prefixed with "list_" and unnamed types fall back to their kind.
func resultTypeName(t reflect.Type) string {
	prefix := ""
	for {
		switch t.Kind() {
		case reflect.Ptr:
			t = t.Elem()
			continue
		case reflect.Slice, reflect.Array:
			prefix += "list_"
			t = t.Elem()
			continue
		}
		break
	}
	name := t.Name()
	if name == "" {
		name = t.Kind().String()
	}
	return prefix + toSnake(name)
}

// toSnake converts a Go identifier to snake_case. Anything that is not a
// letter or digit becomes a single underscore, so reflected names such as
// "Page[model.Product]" still produce keys safe for prefix matching.
func toSnake(s string) string {
	if s == "" {
		return ""
	}

	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(runes) + len(runes)/2)

	lastUnderscore := false
	sep := func() {
		if !lastUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	for i, r := range runes {
		switch {
		case unicode.IsUpper(r):
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					sep()
				}
			}
			b.WriteRune(unicode.ToLower(r))
			lastUnderscore = false

		case unicode.IsLower(r):
			b.WriteRune(r)
			lastUnderscore = false

		case unicode.IsDigit(r):
			if i > 0 && unicode.IsLetter(runes[i-1]) {
				sep()
			}
			b.WriteRune(r)
			lastUnderscore = false

		default:
			sep()
		}
	}

	return strings.Trim(b.String(), "_")
}
