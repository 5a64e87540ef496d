package transport

import "strings"

// MatchTopic reports whether topic is covered by filter. Shared
// subscription filters ($share/<group>/...) match on the part after the
// group name; + matches exactly one level and a trailing # matches the
// parent level and everything below it.
func MatchTopic(filter, topic string) bool {
	if rest, ok := strings.CutPrefix(filter, "$share/"); ok {
		_, f, found := strings.Cut(rest, "/")
		if !found {
			return false
		}
		filter = f
	}

	for {
		fl, fRest, fMore := strings.Cut(filter, "/")
		if fl == "#" {
			return !fMore
		}

		tl, tRest, tMore := strings.Cut(topic, "/")
		if fl != "+" && fl != tl {
			return false
		}

		switch {
		case !fMore && !tMore:
			return true
		case !fMore:
			return false
		case !tMore:
			// "a/#" also matches "a"
			return fRest == "#"
		}
		filter, topic = fRest, tRest
	}
}
