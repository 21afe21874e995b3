package renderer

import (
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"commentflow/internal/domain"
)

// FooterHeight is the band at the bottom of the viewport the overlay never enters.
const FooterHeight = 88

// MaxZIndex stacks the overlay above everything the page can create.
const MaxZIndex = 2147483647

const letterSizeRatio = 0.05

// SizeCoefficient maps a font-size tier to its multiplier. Unknown or
// missing tiers get the L multiplier.
func SizeCoefficient(tier string) float64 {
	switch tier {
	case domain.FontSizeXS:
		return 0.25
	case domain.FontSizeS:
		return 0.5
	case domain.FontSizeM:
		return 1
	case domain.FontSizeL:
		return 2
	case domain.FontSizeXL:
		return 4
	default:
		return 2
	}
}

// LetterSize returns the font size in pixels for a viewport height.
func LetterSize(viewportHeight, coefficient float64) float64 {
	return viewportHeight * letterSizeRatio * coefficient
}

// TopPosition places the element uniformly in [scrollY, scrollY + vh -
// letterSize - FooterHeight]. r must be in [0, 1). When the element does
// not fit above the footer its top sits at scrollY.
func TopPosition(scrollY, viewportHeight, letterSize, r float64) float64 {
	span := viewportHeight - letterSize - FooterHeight
	if span < 0 {
		span = 0
	}
	return scrollY + math.Floor(span*r)
}

// ResolveColor picks the text color: the sender color when the preference
// is "auto" and one is known, else the preference, else DefaultColor.
func ResolveColor(pref, senderColor string) string {
	if pref == domain.ColorAuto && senderColor != "" {
		return senderColor
	}
	if pref != "" {
		return pref
	}
	return domain.DefaultColor
}

// Duration returns how long the comment takes to cross the screen,
// stepping up with its length in characters. Length is counted in runes,
// so a character outside the BMP (most emoji) counts once rather than as
// two UTF-16 units.
func Duration(text string) time.Duration {
	n := utf8.RuneCountInString(text)
	switch {
	case n < 50:
		return 5 * time.Second
	case n < 100:
		return 10 * time.Second
	default:
		return 15 * time.Second
	}
}

const fontLinkPrefix = "commentflow-font-"

// FontLink returns the stylesheet element id and Google Fonts URL for a
// family. The id is stable per family so the link is added only once.
// Whitespace runs in the id become "-" with leading and trailing
// whitespace dropped. The family is query-escaped, which also escapes
// !'()* in the URL; Google Fonts decodes either form.
func FontLink(family string) (id, href string) {
	id = fontLinkPrefix + strings.Join(strings.Fields(family), "-")
	href = "https://fonts.googleapis.com/css2?family=" +
		strings.ReplaceAll(url.QueryEscape(family), "+", "%20") + "&display=swap"
	return id, href
}

// FontFamilyValue is the CSS font-family for a chosen web font.
func FontFamilyValue(family string) string {
	return strconv.Quote(family) + ", sans-serif"
}

// Style is the full set of inline styles applied to a comment element.
type Style struct {
	Left       float64
	Top        float64
	FontSize   float64
	Color      string
	FontFamily string // "" keeps the page font
}

// CSS returns the style as property/value pairs in application order.
func (s Style) CSS() [][2]string {
	props := [][2]string{
		{"left", px(s.Left)},
		{"top", px(s.Top)},
		{"font-size", px(s.FontSize)},
		{"color", s.Color},
	}
	if s.FontFamily != "" {
		props = append(props, [2]string{"font-family", s.FontFamily})
	}
	return append(props,
		[2]string{"position", "absolute"},
		[2]string{"z-index", strconv.Itoa(MaxZIndex)},
		[2]string{"white-space", "nowrap"},
		[2]string{"line-height", "initial"},
	)
}

func px(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "px"
}
