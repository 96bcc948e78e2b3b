// Package episode parses composite series ids and scores release titles
// and file paths against a target season/episode. All functions are pure.
package episode

import (
	"regexp"
	"strconv"
	"strings"
)

// SeasonEpisode is a parsed season/episode pair from a composite series id.
type SeasonEpisode struct {
	Season  int
	Episode int
}

// Release titles and filenames encode episodes in a handful of shapes:
// "S06E03", "6x03", "Season 6 Episode 3", and occasionally a bare "E03".
// The capture groups keep the raw digits so padded and short forms can
// be scored differently.
var (
	reSeasonEp  = regexp.MustCompile(`(?i)\bs(\d{1,2})[\s._-]?e(\d{1,3})\b`)
	reCross     = regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{2,3})\b`)
	reVerbose   = regexp.MustCompile(`(?i)season[\s._-]*(\d{1,2})[\s._-]*episode[\s._-]*(\d{1,3})`)
	reEpisodeNo = regexp.MustCompile(`(?i)\be(\d{2,3})\b`)
)

// Relative weights per pattern, most specific first. Absolute values are
// meaningless; only ordering and sign matter to callers.
const (
	scorePaddedSE  = 100
	scorePaddedX   = 80
	scoreVerbose   = 60
	scoreShortSE   = 50
	scoreShortX    = 40
	scoreBareEp    = 10
	penaltyWrongEp = 50
)

// ExtractSeasonEpisode parses a composite content id of the form
// base:season:episode. It returns nil for movie ids, ids missing the
// suffix, and ids whose suffix parts are not positive integers.
func ExtractSeasonEpisode(contentID string) *SeasonEpisode {
	parts := strings.Split(contentID, ":")
	if len(parts) < 3 {
		return nil
	}
	season, err := strconv.Atoi(parts[1])
	if err != nil || season < 1 {
		return nil
	}
	ep, err := strconv.Atoi(parts[2])
	if err != nil || ep < 1 {
		return nil
	}
	return &SeasonEpisode{Season: season, Episode: ep}
}

// MatchesEpisode reports whether title carries any recognized tag for the
// given season and episode. One matching pattern is sufficient.
func MatchesEpisode(title string, season, episode int) bool {
	return MatchScore(title, season, episode) > 0
}

// MatchScore scores title against the target season/episode. More
// specific tags score higher (S06E03 over 6x03 over "Season 6 Episode 3"
// over a bare E03), and a tag for a different episode (a multi-episode
// pack or a mislabeled release) subtracts a penalty. The result can be
// negative.
func MatchScore(title string, season, episode int) int {
	score := 0
	foreign := false

	for _, m := range reSeasonEp.FindAllStringSubmatch(title, -1) {
		s, e := atoiLoose(m[1]), atoiLoose(m[2])
		if s == season && e == episode {
			if len(m[1]) >= 2 && len(m[2]) >= 2 {
				score += scorePaddedSE
			} else {
				score += scoreShortSE
			}
		} else {
			foreign = true
		}
	}

	for _, m := range reCross.FindAllStringSubmatch(title, -1) {
		s, e := atoiLoose(m[1]), atoiLoose(m[2])
		if s == season && e == episode {
			if len(m[1]) >= 2 {
				score += scorePaddedX
			} else {
				score += scoreShortX
			}
		} else {
			foreign = true
		}
	}

	for _, m := range reVerbose.FindAllStringSubmatch(title, -1) {
		if atoiLoose(m[1]) == season && atoiLoose(m[2]) == episode {
			score += scoreVerbose
		} else {
			foreign = true
		}
	}

	// A bare episode number is a weak signal; it never flags a foreign
	// tag on its own, a stray number is too ambiguous to penalize.
	for _, m := range reEpisodeNo.FindAllStringSubmatch(title, -1) {
		if atoiLoose(m[1]) == episode {
			score += scoreBareEp
			break
		}
	}

	if foreign {
		score -= penaltyWrongEp
	}
	return score
}

// FindMatchingFile scores each path against the target episode and
// returns the index of the best match. Ties keep the earliest file.
// With no positive match, a nil target, or an empty listing it falls
// back to index 0 so callers always have a usable selection.
func FindMatchingFile(paths []string, target *SeasonEpisode) int {
	if target == nil || len(paths) == 0 {
		return 0
	}

	best, bestScore := 0, 0
	for i, p := range paths {
		if s := MatchScore(p, target.Season, target.Episode); s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}

func atoiLoose(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
