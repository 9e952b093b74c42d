package intent

import (
	"strings"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/hearth-iot/hearth/internal/snapshot"
)

// fuzzyThreshold is the minimum sahilm/fuzzy score a candidate must
// strictly exceed to be accepted by the fuzzy pass. sahilm/fuzzy scores
// ordered-subsequence matches rather than rapidfuzz's 0-100
// partial_ratio edit distance, so this is not the original's threshold
// of 85 carried over verbatim: it is recalibrated for the new scale
// while preserving the same decision rule (strictly exceed, strictly
// beat every other candidate, ties mean no match). A score of 50
// requires most of the pattern's characters to appear in order within
// the candidate string, which is a comparable bar of confidence for
// short device names and locations.
const fuzzyThreshold = 50

// Target is the component a Resolution settled on.
type Target struct {
	Device   string
	Type     string // "sensor" or "actuator"
	ID       int
	Name     string
	Location string
}

// Resolution records how Stage B arrived at its target, mirroring the
// audit shape the router's model-selection Decision uses: the rules
// evaluated in order, the rule that matched, and the winning fuzzy
// score. Scores of the candidates that lost are not kept.
type Resolution struct {
	Text           string    `json:"text"`
	Intent         string    `json:"intent"`
	Timestamp      time.Time `json:"timestamp"`
	RulesEvaluated []string  `json:"rules_evaluated"`
	RuleMatched    string    `json:"rule_matched,omitempty"`
	Score          int       `json:"score,omitempty"`
	Target         *Target   `json:"target,omitempty"`
}

// Resolve implements Stage B: given the normalized utterance and the
// Stage A intent, search the Snapshot Store for a single target
// component. ON/OFF/FORWARD/BACKWARD/STOP search actuators;
// ENABLE/DISABLE search sensors. Returns a Resolution whose Target is
// nil when nothing resolved.
func Resolve(text string, in Intent, snap *snapshot.Store) Resolution {
	res := Resolution{Text: text, Intent: in.String(), Timestamp: time.Now()}
	if text == "" || in == Unknown {
		return res
	}

	var compType string
	switch in {
	case On, Off, Forward, Backward, Stop:
		compType = "actuator"
	case Enable, Disable:
		compType = "sensor"
	default:
		return res
	}

	textNorm := strings.ToLower(text)

	var all func() []snapshot.FindResult
	if compType == "actuator" {
		all = snap.AllActuators
	} else {
		all = snap.AllSensors
	}

	// Attempt 1: every candidate whose name AND location both appear
	// literally in the text.
	res.RulesEvaluated = append(res.RulesEvaluated, "exact_name_and_location")
	for _, c := range all() {
		name := strings.ToLower(c.Data.Name)
		location := strings.ToLower(c.Data.Location)
		if name != "" && location != "" && strings.Contains(textNorm, name) && strings.Contains(textNorm, location) {
			return finish(res, "exact_name_and_location", 0, toTarget(c, compType))
		}
	}

	// Attempt 2: exact name only.
	res.RulesEvaluated = append(res.RulesEvaluated, "exact_name")
	for _, c := range all() {
		name := strings.ToLower(c.Data.Name)
		if name != "" && strings.Contains(textNorm, name) {
			return finish(res, "exact_name", 0, toTarget(c, compType))
		}
	}

	// Attempt 3: exact location only.
	res.RulesEvaluated = append(res.RulesEvaluated, "exact_location")
	for _, c := range all() {
		location := strings.ToLower(c.Data.Location)
		if location != "" && strings.Contains(textNorm, location) {
			return finish(res, "exact_location", 0, toTarget(c, compType))
		}
	}

	// Attempt 4: fuzzy matching, global, single clear winner only.
	res.RulesEvaluated = append(res.RulesEvaluated, "fuzzy")
	if best, score, ok := fuzzyMatchGlobal(textNorm, all()); ok {
		return finish(res, "fuzzy", score, toTarget(best, compType))
	}

	return res
}

func finish(res Resolution, rule string, score int, target Target) Resolution {
	res.RuleMatched = rule
	res.Score = score
	res.Target = &target
	return res
}

// fuzzyMatchGlobal scores every candidate's name and location against
// text with sahilm/fuzzy and returns the single best match, provided
// its score strictly exceeds fuzzyThreshold and strictly beats every
// other candidate. A tie at the best score yields no match.
func fuzzyMatchGlobal(text string, candidates []snapshot.FindResult) (snapshot.FindResult, int, bool) {
	bestScore := fuzzyThreshold
	var best snapshot.FindResult
	found := false
	tie := false

	for _, c := range candidates {
		score := 0
		if name := strings.ToLower(c.Data.Name); name != "" {
			if s := bestSubsequenceScore(text, name); s > score {
				score = s
			}
		}
		if location := strings.ToLower(c.Data.Location); location != "" {
			if s := bestSubsequenceScore(text, location); s > score {
				score = s
			}
		}

		switch {
		case score > bestScore:
			bestScore = score
			best = c
			found = true
			tie = false
		case found && score == bestScore:
			tie = true
		}
	}

	if found && !tie {
		return best, bestScore, true
	}
	return snapshot.FindResult{}, 0, false
}

// bestSubsequenceScore scores candidate against text using sahilm/fuzzy
// in both directions (pattern=candidate over data=[text] and
// pattern=text over data=[candidate]) and keeps the higher score, since
// neither direction alone approximates rapidfuzz's symmetric
// partial_ratio.
func bestSubsequenceScore(text, candidate string) int {
	best := 0
	if matches := fuzzy.Find(candidate, []string{text}); len(matches) > 0 {
		best = matches[0].Score
	}
	if matches := fuzzy.Find(text, []string{candidate}); len(matches) > 0 && matches[0].Score > best {
		best = matches[0].Score
	}
	return best
}

func toTarget(r snapshot.FindResult, compType string) Target {
	return Target{Device: r.Device, Type: compType, ID: r.ID, Name: r.Data.Name, Location: r.Data.Location}
}
