package api

import "strings"

// projectKeys flattens repeated and comma-separated project parameters,
// dropping blanks and duplicates.
func projectKeys(values []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, v := range values {
		for _, k := range strings.Split(v, ",") {
			k = strings.TrimSpace(k)
			if k == "" {
				continue
			}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out
}
