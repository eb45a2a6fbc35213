package topic

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Limits describe the byte and level-count ceilings for one topic
// class (spec §6's table).
type Limits struct {
	MaxBytes  int
	MaxLevels int // 0 means unbounded (server validated)
}

// Class identifies which §6 validation bucket a topic falls into.
type Class int

const (
	ClassUnreserved Class = iota
	ClassAWSRules
	ClassShare
	ClassOtherReserved
)

var classLimits = map[Class]Limits{
	ClassUnreserved:    {MaxBytes: 256, MaxLevels: 7},
	ClassAWSRules:      {MaxBytes: 256, MaxLevels: 7},
	ClassShare:         {MaxBytes: 256, MaxLevels: 7},
	ClassOtherReserved: {MaxBytes: 512, MaxLevels: 0},
}

// classify determines the reserved-prefix class of a topic filter.
// $aws/rules/<name>/... has that prefix excluded before byte/level
// limits apply; $share/<group>/... topics are counted whole; other
// $aws/... topics get the wider, unbounded-level allowance.
func classify(t string) (class Class, counted string) {
	switch {
	case strings.HasPrefix(t, "$aws/rules/"):
		rest := strings.TrimPrefix(t, "$aws/rules/")
		if idx := strings.IndexByte(rest, '/'); idx >= 0 {
			rest = rest[idx+1:]
		} else {
			rest = ""
		}
		return ClassAWSRules, rest
	case strings.HasPrefix(t, "$share/"):
		return ClassShare, t
	case strings.HasPrefix(t, "$aws/"):
		return ClassOtherReserved, t
	default:
		return ClassUnreserved, t
	}
}

func levelCount(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "/") + 1
}

// ValidatePublish validates a concrete publish topic: non-empty, no
// wildcards, valid UTF-8, and within the byte/level limits for its
// reserved-prefix class.
func ValidatePublish(t string) error {
	if t == "" {
		return fmt.Errorf("topic: publish topic must not be empty")
	}

	if !utf8.ValidString(t) {
		return fmt.Errorf("topic: %q is not valid UTF-8", t)
	}

	if strings.ContainsAny(t, "+#") {
		return fmt.Errorf("topic: publish topic %q must not contain wildcards", t)
	}

	if strings.Contains(t, "\x00") {
		return fmt.Errorf("topic: publish topic %q contains a null byte", t)
	}

	if strings.HasPrefix(t, "$share/") {
		return fmt.Errorf("topic: shared-subscription topic %q is not valid for publish", t)
	}

	class, counted := classify(t)
	limits := classLimits[class]

	if len(counted) > limits.MaxBytes {
		return fmt.Errorf("topic: publish topic length %d exceeds maximum %d for class %d", len(counted), limits.MaxBytes, class)
	}

	if limits.MaxLevels > 0 && levelCount(counted) > limits.MaxLevels {
		return fmt.Errorf("topic: publish topic has %d levels, maximum is %d for class %d", levelCount(counted), limits.MaxLevels, class)
	}

	return nil
}

// ValidateSubscribe validates a topic filter for subscribing: wildcards
// are allowed but must be well-formed ('+' alone in its level, '#' only
// as the last, standalone level), and $share/<group>/<filter> is only
// accepted here, never from ValidatePublish.
func ValidateSubscribe(t string) error {
	if t == "" {
		return fmt.Errorf("topic: subscribe filter must not be empty")
	}

	if !utf8.ValidString(t) {
		return fmt.Errorf("topic: %q is not valid UTF-8", t)
	}

	if strings.Contains(t, "\x00") {
		return fmt.Errorf("topic: subscribe filter %q contains a null byte", t)
	}

	filter := t
	class, counted := classify(t)

	if class == ClassShare {
		parts := strings.SplitN(strings.TrimPrefix(t, "$share/"), "/", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return fmt.Errorf("topic: malformed shared-subscription filter %q, expected $share/<group>/<filter>", t)
		}
		filter = parts[1]
	}

	parts := strings.Split(filter, "/")
	for i, part := range parts {
		if strings.Contains(part, "+") && part != "+" {
			return fmt.Errorf("topic: single-level wildcard '+' must occupy its entire level in %q", t)
		}

		if strings.Contains(part, "#") {
			if part != "#" {
				return fmt.Errorf("topic: multi-level wildcard '#' must occupy its entire level in %q", t)
			}
			if i != len(parts)-1 {
				return fmt.Errorf("topic: multi-level wildcard '#' must be the last level in %q", t)
			}
		}
	}

	limits := classLimits[class]

	if len(counted) > limits.MaxBytes {
		return fmt.Errorf("topic: subscribe filter length %d exceeds maximum %d for class %d", len(counted), limits.MaxBytes, class)
	}

	if limits.MaxLevels > 0 && levelCount(counted) > limits.MaxLevels {
		return fmt.Errorf("topic: subscribe filter has %d levels, maximum is %d for class %d", levelCount(counted), limits.MaxLevels, class)
	}

	return nil
}
