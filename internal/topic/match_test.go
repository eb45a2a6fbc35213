package topic

import "testing"

func TestMatch(t *testing.T) {
	cases := []struct {
		filter, topic string
		want          bool
	}{
		{"a/b/c", "a/b/c", true},
		{"a/+/c", "a/b/c", true},
		{"a/+/c", "a/b/x/c", false},
		{"a/b/#", "a/b", true},
		{"a/b/#", "a/b/c/d", true},
		{"a/b", "a/b/c", false},
		{"+/monitor/Clients", "$SYS/monitor/Clients", false},
		{"#", "$SYS/foo", false},
		{"$SYS/#", "$SYS/foo", true},
	}

	for _, c := range cases {
		if got := Match(c.filter, c.topic); got != c.want {
			t.Errorf("Match(%q, %q) = %v, want %v", c.filter, c.topic, got, c.want)
		}
	}
}

func TestIsSupersetMatchCoherence(t *testing.T) {
	filters := []string{"a/b/c", "a/+/c", "a/b/#", "a/#", "+/+/+", "#"}
	topics := []string{"a/b/c", "a/b", "a/b/c/d", "x/y/z"}

	for _, f := range filters {
		for _, top := range topics {
			if Match(f, top) != IsSuperset(f, top) {
				t.Errorf("coherence violated: Match(%q,%q)=%v IsSuperset=%v", f, top, Match(f, top), IsSuperset(f, top))
			}
		}
	}
}

func TestIsSupersetTransitivity(t *testing.T) {
	filters := []string{"a/b/c", "a/+/c", "a/b/#", "a/#", "#", "+/b/c", "a/b/+"}

	for _, a := range filters {
		for _, b := range filters {
			if !IsSuperset(a, b) {
				continue
			}
			for _, c := range filters {
				if !IsSuperset(b, c) {
					continue
				}
				if !IsSuperset(a, c) {
					t.Errorf("transitivity violated: IsSuperset(%q,%q) and IsSuperset(%q,%q) but not IsSuperset(%q,%q)", a, b, b, c, a, c)
				}
			}
		}
	}
}

func TestIsSupersetExamples(t *testing.T) {
	if !IsSuperset("a/b/+", "a/b/c") {
		t.Error("a/b/+ should be a superset of a/b/c")
	}

	if IsSuperset("a/b/+", "a/b/#") {
		t.Error("a/b/+ should not be a superset of a/b/#, since # covers a/b itself")
	}

	if !IsSuperset("a/b/#", "a/b/+") {
		t.Error("a/b/# should be a superset of a/b/+")
	}

	if !IsSuperset("topic/with/single/+/wildcard", "topic/with/single/abc/wildcard") {
		t.Error("S6: wildcard resource should authorize the concrete topic")
	}

	if IsSuperset("topic/with/single/+/wildcard", "topic/other") {
		t.Error("S6: unrelated topic must not be authorized")
	}
}
