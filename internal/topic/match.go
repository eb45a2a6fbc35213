package topic

import "strings"

// levels splits a filter or topic into its '/'-separated levels.
func levels(s string) []string {
	return strings.Split(s, "/")
}

// Match reports whether topic (a concrete topic name, never containing
// wildcards) is matched by filter (which may contain '+' and a
// trailing '#'), following the standard MQTT rules:
//
//   - '+' matches exactly one level.
//   - '#' matches zero or more trailing levels and is only meaningful
//     as the last level of filter.
//   - A filter level starting with '+' or '#' never matches a topic
//     whose first level starts with '$' (MQTT-4.7.2-1), since this
//     client enforces the same rule locally for dispatch as a
//     conforming server would for wildcard subscriptions.
func Match(filter, topic string) bool {
	if len(topic) > 0 && topic[0] == '$' {
		if len(filter) > 0 && (filter[0] == '+' || filter[0] == '#') {
			return false
		}
	}

	fLevels := levels(filter)
	tLevels := levels(topic)

	for i, fLevel := range fLevels {
		if fLevel == "#" {
			return true
		}

		if i >= len(tLevels) {
			return false
		}

		if fLevel != "+" && fLevel != tLevels[i] {
			return false
		}
	}

	return len(fLevels) == len(tLevels)
}

// IsSuperset reports whether a ⊇ b: every concrete topic matched by
// filter b is also matched by filter a. Equal filters are trivially
// supersets of each other.
//
// The relation is decided level-wise:
//   - equal levels, or a's level is '+', are always compatible.
//   - if a ends with '#' at level i, everything from level i onward in
//     b is covered regardless of what remains.
//   - if b ends with '#' before a does, a can only cover it by also
//     ending with '#' at the same or an earlier level.
func IsSuperset(a, b string) bool {
	aLevels := levels(a)
	bLevels := levels(b)

	for i, aLevel := range aLevels {
		if aLevel == "#" {
			return true
		}

		if i >= len(bLevels) {
			return false
		}

		bLevel := bLevels[i]

		if bLevel == "#" {
			// b's wildcard reaches further than anything a can name
			// concretely; a only covers it if a is also "#" here,
			// which was handled above.
			return false
		}

		if aLevel == "+" {
			continue
		}

		if aLevel != bLevel {
			return false
		}
	}

	return len(aLevels) == len(bLevels)
}
