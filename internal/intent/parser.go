// Package intent implements the Intent Pipeline: parse an utterance into
// an Intent (Stage A), resolve it against the Snapshot Store into a
// concrete target component (Stage B), and build a system/set payload
// from the pair (Stage C) — spec.md §4.10.
package intent

import "regexp"

// Intent is the set of recognized voice commands. UNKNOWN means no
// pattern matched.
type Intent int

const (
	Unknown Intent = iota
	On
	Off
	Enable
	Disable
	Forward
	Backward
	Stop
)

func (i Intent) String() string {
	switch i {
	case On:
		return "ON"
	case Off:
		return "OFF"
	case Enable:
		return "ENABLE"
	case Disable:
		return "DISABLE"
	case Forward:
		return "FORWARD"
	case Backward:
		return "BACKWARD"
	case Stop:
		return "STOP"
	default:
		return "UNKNOWN"
	}
}

type intentPattern struct {
	intent   Intent
	patterns []*regexp.Regexp
}

// intentPatterns is checked in order; the first pattern that matches,
// in the order the intents and their patterns are listed here, wins.
// STOP is checked before FORWARD/BACKWARD so "para de abrir" resolves
// to STOP rather than FORWARD, per the ordering grounded on
// original_source's intent_parser.py.
var intentPatterns = []intentPattern{
	{Stop, compileAll(`\bpar\w*\b`, `\bdeten\w*\b`, `\balto\b`, `\bstop\b`)},
	{Forward, compileAll(`\babr\w*\b`, `\blevant\w*\b`, `\bsub\w*\b`)},
	{Backward, compileAll(`\bcierr\w*\b`, `\bcerr\w*\b`, `\bbaj\w*\b`)},
	{On, compileAll(`\benciend\w*\b`, `\bactiv\w*\b`, `\bprend\w*\b`)},
	{Off, compileAll(`\bapag\w*\b`, `\bdesactiv\w*\b`)},
	{Enable, compileAll(`\bhabilit\w*\b`)},
	{Disable, compileAll(`\bdeshabilit\w*\b`, `\bin\w*habilit\w*\b`)},
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + e)
	}
	return out
}

// ParseIntent returns the first Intent whose pattern list matches text,
// walking intentPatterns in order. Empty input or no match yields
// Unknown.
func ParseIntent(text string) Intent {
	if text == "" {
		return Unknown
	}
	for _, ip := range intentPatterns {
		for _, re := range ip.patterns {
			if re.MatchString(text) {
				return ip.intent
			}
		}
	}
	return Unknown
}
