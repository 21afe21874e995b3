package domain

import "context"

// TabHost locates the focused tab and injects the renderer into it.
type TabHost interface {
	// FocusedTab returns the active tab's ID, or ok=false when no tab can take focus.
	FocusedTab(ctx context.Context) (id string, ok bool)
	// InjectComment starts a renderer for c in the given tab. It must not
	// wait for the animation to finish.
	InjectComment(ctx context.Context, tabID string, c Comment) error
}

// Indicator shows whether streaming is enabled.
type Indicator interface {
	SetStreaming(enabled bool)
}
