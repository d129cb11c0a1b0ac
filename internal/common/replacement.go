// -----------------------------------------------------------------------
// Key reference replacement - resolves {key-name} config values from the
// KV store
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"reflect"
	"regexp"

	"github.com/ternarybob/arbor"
)

// keyRefPattern matches {key-name} references. Key names allow
// alphanumerics, hyphens, and underscores.
var keyRefPattern = regexp.MustCompile(`\{([a-zA-Z0-9_-]+)\}`)

// ReplaceKeyReferences resolves every {key-name} reference in input
// against the KV map. Unknown references stay unchanged and log a
// warning. Resolved values are typically API keys, so neither old nor
// new values are logged.
func ReplaceKeyReferences(input string, kvMap map[string]string, logger arbor.ILogger) string {
	if input == "" {
		return input
	}

	return keyRefPattern.ReplaceAllStringFunc(input, func(match string) string {
		keyName := match[1 : len(match)-1]
		if value, ok := kvMap[keyName]; ok {
			return value
		}
		if logger != nil {
			logger.Warn().
				Str("reference", match).
				Msg("Unresolved key reference - key not found in KV store")
		}
		return match
	})
}

// ReplaceInStruct walks a struct pointer and resolves {key-name}
// references in all its settable string fields, including nested
// structs, struct pointers, and string slices. The struct is mutated
// in place. Config runs through this once at startup, after the KV
// store is loaded and before any service resolves an API key.
func ReplaceInStruct(v interface{}, kvMap map[string]string, logger arbor.ILogger) error {
	val := reflect.ValueOf(v)
	if val.Kind() != reflect.Ptr {
		return fmt.Errorf("ReplaceInStruct requires a pointer, got %T", v)
	}

	val = val.Elem()
	if val.Kind() != reflect.Struct {
		return fmt.Errorf("ReplaceInStruct requires a struct pointer, got pointer to %v", val.Kind())
	}

	replaceStructFields(val, kvMap, logger)
	return nil
}

func replaceStructFields(val reflect.Value, kvMap map[string]string, logger arbor.ILogger) {
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		if !field.CanSet() {
			continue
		}

		switch field.Kind() {
		case reflect.String:
			old := field.String()
			resolved := ReplaceKeyReferences(old, kvMap, logger)
			if resolved != old {
				field.SetString(resolved)
				if logger != nil {
					logger.Debug().
						Str("field", typ.Field(i).Name).
						Msg("Resolved key reference in config field")
				}
			}

		case reflect.Struct:
			replaceStructFields(field, kvMap, logger)

		case reflect.Ptr:
			if !field.IsNil() && field.Elem().Kind() == reflect.Struct {
				replaceStructFields(field.Elem(), kvMap, logger)
			}

		case reflect.Slice:
			if field.Type().Elem().Kind() != reflect.String {
				continue
			}
			for j := 0; j < field.Len(); j++ {
				elem := field.Index(j)
				old := elem.String()
				resolved := ReplaceKeyReferences(old, kvMap, logger)
				if resolved != old {
					elem.SetString(resolved)
				}
			}
		}
	}
}
