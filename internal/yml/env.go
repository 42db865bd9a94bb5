package yml

import (
	"os"
	"strings"
	"unicode"
)

const envPrefix = "${env."

// ExpandEnv replaces ${env.NAME} with the value of environment variable NAME,
// empty when unset. Malformed references are kept verbatim.
func ExpandEnv(text string) string {
	return expand(text, os.Getenv)
}

func expand(text string, lookup func(string) string) string {
	var b strings.Builder
	for {
		start := strings.Index(text, envPrefix)
		if start < 0 {
			b.WriteString(text)
			return b.String()
		}
		b.WriteString(text[:start])
		rest := text[start+len(envPrefix):]
		end := strings.IndexByte(rest, '}')
		if end < 0 {
			b.WriteString(text[start:])
			return b.String()
		}
		name := rest[:end]
		if !isEnvName(name) {
			// rescan after the prefix so nested references still expand
			b.WriteString(envPrefix)
			text = rest
			continue
		}
		b.WriteString(lookup(name))
		text = rest[end+1:]
	}
}

func isEnvName(name string) bool {
	for _, r := range name {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			return false
		}
	}
	return true
}
