package maputil

import "fmt"

// GetKeyFromMap returns obj[key], or [defaultValue] if the key is not set.
func GetKeyFromMap(obj map[string]any, key string, defaultValue any) any {
	if val, ok := obj[key]; ok {
		return val
	}
	return defaultValue
}

// GetString is [GetKeyFromMap] for settings that are rendered as strings. Empty values fall back to [defaultValue].
func GetString(obj map[string]any, key, defaultValue string) string {
	val, ok := obj[key]
	if !ok || val == nil {
		return defaultValue
	}

	if str := fmt.Sprint(val); str != "" {
		return str
	}
	return defaultValue
}
