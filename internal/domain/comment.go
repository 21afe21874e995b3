package domain

// Comment is a single chat message on its way to the overlay.
// It is produced by the extractor and rendered at most once.
type Comment struct {
	Text        string `json:"text"`
	SenderColor string `json:"color,omitempty"` // "" means unset
}

// Preference cells held by the coordinator's backing store. The pending
// comment and its sender color live in the coordinator's in-memory slot,
// not in the store.
const (
	KeyColor              = "color"
	KeyFontSize           = "fontSize"
	KeyFontFamily         = "fontFamily"
	KeyIsEnabledStreaming = "isEnabledStreaming"
)

// ColorAuto selects the sender-derived color when one is available.
const ColorAuto = "auto"

// DefaultColor is used when no color preference is stored.
const DefaultColor = "green"

// Colors lists the selectable color preferences.
var Colors = []string{
	ColorAuto, "black", "red", "orange", "yellow", "green", "blue", "indigo", "purple",
}

// Font size tiers.
const (
	FontSizeXS = "XS"
	FontSizeS  = "S"
	FontSizeM  = "M"
	FontSizeL  = "L"
	FontSizeXL = "XL"
)

var FontSizes = []string{FontSizeXS, FontSizeS, FontSizeM, FontSizeL, FontSizeXL}

// FontFamilies lists the selectable web fonts. The empty name keeps the
// page's default font.
var FontFamilies = []string{
	"",
	"Dela Gothic One",
	"Hachi Maru Pop",
	"Reggae One",
	"RocknRoll One",
	"Yusei Magic",
	"Zen Maru Gothic",
}
