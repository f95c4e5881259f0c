package naming

import (
	"strconv"
	"strings"
)

// CopySuffix is appended to a map name when it is cloned for editing.
const CopySuffix = " copy"

// Sanitize turns a display name into a single topic segment. Slashes would
// split the segment, so they become dashes.
func Sanitize(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), "/", "-")
}

// CloneName returns the name used for an editable copy of a stored map.
func CloneName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return strings.TrimSpace(CopySuffix)
	}
	if strings.HasSuffix(name, CopySuffix) {
		return name
	}
	return name + CopySuffix
}

// Unique returns candidate, or candidate with the smallest numeric suffix
// ("Floor 2", "Floor 3", ...) that does not collide with any taken name once
// both are sanitized.
func Unique(taken []string, candidate string) string {
	candidate = strings.TrimSpace(candidate)
	used := make(map[string]struct{}, len(taken))
	for _, t := range taken {
		used[Sanitize(t)] = struct{}{}
	}
	if _, ok := used[Sanitize(candidate)]; !ok {
		return candidate
	}

	base := trimNumericSuffix(candidate)
	for n := 2; ; n++ {
		next := base + " " + strconv.Itoa(n)
		if _, ok := used[Sanitize(next)]; !ok {
			return next
		}
	}
}

// Collides reports whether name would share a topic segment with any of taken.
func Collides(taken []string, name string) bool {
	seg := Sanitize(name)
	for _, t := range taken {
		if Sanitize(t) == seg {
			return true
		}
	}
	return false
}

func trimNumericSuffix(value string) string {
	i := strings.LastIndexByte(value, ' ')
	if i <= 0 || i == len(value)-1 {
		return value
	}
	if _, err := strconv.Atoi(value[i+1:]); err != nil {
		return value
	}
	return value[:i]
}
