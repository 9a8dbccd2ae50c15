package winreg

import (
	"regexp"
	"strings"
)

// Match scoring tiers. An exact subkey hit beats everything; normalized and
// substring matches are accepted but ranked lower so a better candidate in
// the same scan wins.
const (
	scoreExactSubKey      = 150
	scoreExactDisplayName = 145

	scoreNormalizedSubKey  = 135
	scoreNormalizedDisplay = 125
	scoreNormalizedIDName  = 115

	scoreIDInDisplay   = 110
	scoreNameInDisplay = 95
	scoreDisplayInID   = 80

	scoreMinAccept = 70

	bonusLocationHasName = 10
	bonusLocationHasID   = 5
)

var versionOnlyPattern = regexp.MustCompile(`^v?\d+(\.\d+)*$`)

// Match is a scored registry candidate for a catalog package id.
type Match struct {
	Entry RawEntry
	Score int
}

// Matcher answers "which registry entry corresponds to this package id".
type Matcher struct {
	extractor *Extractor
}

// NewMatcher returns a Matcher using the given path extractor for location
// bonuses. A nil extractor disables the bonus.
func NewMatcher(extractor *Extractor) *Matcher {
	return &Matcher{extractor: extractor}
}

// Best scores every entry against the package id and display name and
// returns the highest-scoring candidate at or above the acceptance
// threshold. Version-only ids like "4.7.1" are rejected outright: they match
// half the registry and identify nothing. ok is false when no candidate
// reaches the threshold.
func (m *Matcher) Best(packageID, name string, entries []RawEntry) (Match, bool) {
	if packageID == "" || versionOnlyPattern.MatchString(packageID) {
		return Match{}, false
	}

	var best Match
	for _, entry := range entries {
		score := m.score(packageID, name, entry)
		if score > best.Score {
			best = Match{Entry: entry, Score: score}
		}
	}

	if best.Score < scoreMinAccept {
		return Match{}, false
	}
	return best, true
}

func (m *Matcher) score(packageID, name string, entry RawEntry) int {
	score := baseScore(packageID, name, entry)
	if score == 0 {
		return 0
	}
	return score + m.locationBonus(packageID, name, entry)
}

func baseScore(packageID, name string, entry RawEntry) int {
	if strings.EqualFold(entry.SubKey, packageID) {
		return scoreExactSubKey
	}
	if name != "" && strings.EqualFold(entry.DisplayName, name) {
		return scoreExactDisplayName
	}

	normID := normalizeToken(packageID)
	normName := normalizeToken(name)
	normSubKey := normalizeToken(entry.SubKey)
	normDisplay := normalizeToken(entry.DisplayName)

	// WinGet ids are Publisher.Name; the trailing segment often matches the
	// registry entry on its own.
	idTail := normID
	if i := strings.LastIndexByte(packageID, '.'); i >= 0 {
		idTail = normalizeToken(packageID[i+1:])
	}

	switch {
	case normSubKey != "" && (normSubKey == normID || normSubKey == idTail):
		return scoreNormalizedSubKey
	case normDisplay != "" && (normDisplay == normID || normDisplay == idTail):
		return scoreNormalizedDisplay
	case normName != "" && normDisplay == normName:
		return scoreNormalizedIDName
	}

	switch {
	case normDisplay != "" && idTail != "" && strings.Contains(normDisplay, idTail):
		return scoreIDInDisplay
	case normDisplay != "" && normName != "" && strings.Contains(normDisplay, normName):
		return scoreNameInDisplay
	case normDisplay != "" && strings.Contains(normID, normDisplay):
		return scoreDisplayInID
	}

	return 0
}

func (m *Matcher) locationBonus(packageID, name string, entry RawEntry) int {
	if m.extractor == nil {
		return 0
	}
	loc := normalizeToken(m.extractor.InstallLocation(entry))
	if loc == "" {
		return 0
	}
	if n := normalizeToken(name); n != "" && strings.Contains(loc, n) {
		return bonusLocationHasName
	}
	if id := normalizeToken(packageID); id != "" && strings.Contains(loc, id) {
		return bonusLocationHasID
	}
	return 0
}

// normalizeToken lowercases and strips everything but letters and digits so
// "7-Zip" and "7zip" style variants compare equal.
func normalizeToken(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
