package sandbox

import "strings"

// shellMeta are the characters removed from every argument before it reaches the toolchain.
// Arguments are passed as an argv vector, never through a shell, so this is a second layer:
// the toolchain itself is a shell script.
const shellMeta = ";&|`$"

// SanitizeArg strips shell metacharacters from s. Empty strings stay empty so positional
// arguments keep their position.
func SanitizeArg(s string) string {
	if !strings.ContainsAny(s, shellMeta) {
		return s
	}
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(shellMeta, r) {
			return -1
		}
		return r
	}, s)
}

// SanitizeArgs applies SanitizeArg to each element, returning a new slice.
func SanitizeArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = SanitizeArg(a)
	}
	return out
}
