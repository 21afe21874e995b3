package extractor

import "testing"

func TestDeriveColor(t *testing.T) {
	tests := []struct {
		name       string
		candidates []ColorCandidate
		want       string
	}{
		{"none", nil, ""},
		{"first opaque avatar", []ColorCandidate{
			{SourceAvatar, "transparent"},
			{SourceAvatar, "rgb(10, 20, 30)"},
			{SourceAvatar, "rgb(1, 1, 1)"},
		}, "rgb(10, 20, 30)"},
		{"avatar beats styled", []ColorCandidate{
			{SourceStyled, "rgb(9, 9, 9)"},
			{SourceAvatar, "rgb(1, 2, 3)"},
		}, "rgb(1, 2, 3)"},
		{"white avatar allowed", []ColorCandidate{
			{SourceAvatar, "rgb(255, 255, 255)"},
		}, "rgb(255, 255, 255)"},
		{"styled skips white", []ColorCandidate{
			{SourceStyled, "rgb(255, 255, 255)"},
			{SourceStyled, "rgba(0, 0, 0, 0)"},
			{SourceStyled, "rgb(0, 128, 0)"},
		}, "rgb(0, 128, 0)"},
		{"all transparent", []ColorCandidate{
			{SourceAvatar, "rgba(0, 0, 0, 0)"},
			{SourceStyled, ""},
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveColor(tt.candidates); got != tt.want {
				t.Errorf("DeriveColor() = %q, want %q", got, tt.want)
			}
		})
	}
}
