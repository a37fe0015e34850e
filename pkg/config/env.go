package config

import "regexp"

// envVarPatterns mirrors the teacher's three-stage expansion order:
// a default-valued reference first, then a braced reference, then a
// bare $VAR reference. Order matters — matching the longer forms first
// keeps "${VAR:-default}" from being misread as a bare "${VAR".
var envVarPatterns = struct {
	withDefault *regexp.Regexp
	braced      *regexp.Regexp
	simple      *regexp.Regexp
}{
	withDefault: regexp.MustCompile(`\$\{(\w+):-([^}]*)\}`),
	braced:      regexp.MustCompile(`\$\{(\w+)\}`),
	simple:      regexp.MustCompile(`\$(\w+)`),
}

// EnvLookup abstracts os.LookupEnv so expandEnvVars is testable without
// mutating the process environment.
type EnvLookup func(string) (string, bool)

// expandEnvVars resolves ${VAR:-default}, ${VAR}, and $VAR references in
// s against lookup, applying the three forms in that order so a
// with-default reference is never partially matched by the braced or
// simple patterns.
func expandEnvVars(s string, lookup EnvLookup) string {
	s = envVarPatterns.withDefault.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPatterns.withDefault.FindStringSubmatch(match)
		name, def := groups[1], groups[2]
		if v, ok := lookup(name); ok && v != "" {
			return v
		}
		return def
	})

	s = envVarPatterns.braced.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPatterns.braced.FindStringSubmatch(match)[1]
		if v, ok := lookup(name); ok {
			return v
		}
		return ""
	})

	s = envVarPatterns.simple.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPatterns.simple.FindStringSubmatch(match)[1]
		if v, ok := lookup(name); ok {
			return v
		}
		return ""
	})

	return s
}
