// Package extractor recognizes signal messages and turns them into signals.
package extractor

import (
	"regexp"
	"strings"

	"SignalPilot/internal/domain/models"
)

// Match is a recognized signal message.
type Match struct {
	Result  models.Result `json:"result"`
	Attempt int           `json:"attempt,omitempty"`
	Asset   string        `json:"asset"`
}

type pattern struct {
	name    string
	re      *regexp.Regexp
	result  models.Result
	attempt int
}

// shape builds a pattern accepting both `✅ TAG em `ASSET` ✅` and `✅ **TAG em ASSET** ✅`.
func shape(mark, tag string) *regexp.Regexp {
	asset := `([A-Z]+/[A-Z]+)`
	return regexp.MustCompile(`(?im)` + mark + `\s*(?:\*\*` + tag + `\s+em\s+` + asset + `\*\*|` +
		tag + `\s+em\s*` + "`" + asset + "`" + `)\s*` + mark)
}

// Order matters: the first matching shape wins.
var patterns = []pattern{
	{name: "win_1st", re: shape("✅", `WIN`), result: models.ResultWin, attempt: 1},
	{name: "win_2nd", re: shape("✅", `WIN\s*\(G1\)`), result: models.ResultWin, attempt: 2},
	{name: "win_3rd", re: shape("✅", `WIN\s*\(G2\)`), result: models.ResultWin, attempt: 3},
	{name: "loss", re: shape("❎", `STOP`), result: models.ResultLoss},
}

// Extract looks for a signal in text. No match is not an error.
func Extract(text string) (Match, bool) {
	if text == "" {
		return Match{}, false
	}
	for _, p := range patterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		asset := m[1]
		if asset == "" {
			asset = m[2]
		}
		return Match{Result: p.result, Attempt: p.attempt, Asset: strings.ToUpper(asset)}, true
	}
	return Match{}, false
}

// PatternName returns the name of the shape that matches text, or "".
func PatternName(text string) string {
	for _, p := range patterns {
		if p.re.MatchString(text) {
			return p.name
		}
	}
	return ""
}
