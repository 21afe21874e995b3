package extractor

import (
	"strings"

	"github.com/samber/lo"
)

// CandidateSource tells DeriveColor which heuristic produced a candidate.
type CandidateSource string

const (
	// SourceAvatar: computed background of an element matched by one of
	// the avatar selectors, in selector order.
	SourceAvatar CandidateSource = "avatar"
	// SourceStyled: computed background of any element with an inline
	// background style under the sender ancestor, in document order.
	SourceStyled CandidateSource = "styled"
)

// ColorCandidate is one computed background color found near a message node.
type ColorCandidate struct {
	Source CandidateSource `json:"source"`
	Value  string          `json:"value"`
}

var transparentColors = []string{"", "transparent", "rgba(0, 0, 0, 0)"}

// DeriveColor picks the sender accent color: the first opaque avatar
// color, else the first styled color that is neither transparent nor
// white. It returns "" when nothing qualifies.
func DeriveColor(candidates []ColorCandidate) string {
	if c, ok := lo.Find(candidates, func(c ColorCandidate) bool {
		return c.Source == SourceAvatar && !isTransparent(c.Value)
	}); ok {
		return strings.TrimSpace(c.Value)
	}
	if c, ok := lo.Find(candidates, func(c ColorCandidate) bool {
		return c.Source == SourceStyled && !isTransparent(c.Value) && !isWhite(c.Value)
	}); ok {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

func isTransparent(v string) bool {
	return lo.Contains(transparentColors, strings.TrimSpace(v))
}

func isWhite(v string) bool {
	return strings.TrimSpace(v) == "rgb(255, 255, 255)"
}
