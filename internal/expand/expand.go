// Package expand substitutes ${key} references in configuration values.
package expand

import (
	"os"
	"regexp"
	"strings"
)

// ${key} or ${key:-fallback}
var reference = regexp.MustCompile(`\$\{([a-zA-Z0-9_.-]+)(?::-([^}]*))?\}`)

const envPrefix = "env."

// Expand replaces every ${key} in v with mapping(key). When the reference
// carries a fallback, as in ${key:-fallback}, the fallback is used wherever
// mapping reports the key as unset.
func Expand(v string, mapping func(string) (string, bool)) string {
	matches := reference.FindAllStringSubmatchIndex(v, -1)
	if matches == nil {
		return v
	}
	var sb strings.Builder
	last := 0
	for _, m := range matches {
		sb.WriteString(v[last:m[0]])
		value, ok := mapping(v[m[2]:m[3]])
		if !ok && m[4] >= 0 {
			value = v[m[4]:m[5]]
		}
		sb.WriteString(value)
		last = m[1]
	}
	sb.WriteString(v[last:])
	return sb.String()
}

// Env resolves "env.NAME" keys to environment variables. Other keys are
// never set.
func Env(key string) (string, bool) {
	if name, ok := strings.CutPrefix(key, envPrefix); ok {
		return os.LookupEnv(name)
	}
	return "", false
}

// ExpandEnv expands ${env.NAME} references in v.
func ExpandEnv(v string) string {
	return Expand(v, Env)
}
