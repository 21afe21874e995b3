package browser

import (
	"encoding/json"
	"fmt"

	"commentflow/internal/extractor"

	"github.com/samber/lo"
)

// Runtime binding names exposed to the page.
const (
	bindingMutation = "commentflowMutation"
	bindingKey      = "commentflowKey"
	bindingReady    = "commentflowReady"
)

// Selectors locate the meeting page's elements. They follow the host
// page's markup and break when it changes, so each one can be overridden.
type Selectors struct {
	Popup      string   `json:"popup"`      // caption popup messages
	Chat       string   `json:"chat"`       // chat panel messages
	Sender     string   `json:"sender"`     // ancestor carrying the sender identity
	Avatars    []string `json:"avatars"`    // tried in order under the sender
	Styled     string   `json:"styled"`     // fallback inline-background elements
	FullScreen string   `json:"fullScreen"` // slides full-screen presentation node
}

// DefaultSelectors matches the current Google Meet and Slides markup.
func DefaultSelectors() Selectors {
	return Selectors{
		Popup:  "div.huGk4e",
		Chat:   `div[jsname="dTKtvb"]`,
		Sender: "[data-sender-id]",
		Avatars: []string{
			`div[style*="background-color"]`,
			`div[data-iph] div[style*="background"]`,
			".kssMUb",
		},
		Styled:     `[style*="background"]`,
		FullScreen: "body > div.punch-full-screen-element.punch-full-window-overlay",
	}
}

// WithDefaults fills empty fields from DefaultSelectors.
func (s Selectors) WithDefaults() Selectors {
	d := DefaultSelectors()
	s.Popup = lo.CoalesceOrEmpty(s.Popup, d.Popup)
	s.Chat = lo.CoalesceOrEmpty(s.Chat, d.Chat)
	s.Sender = lo.CoalesceOrEmpty(s.Sender, d.Sender)
	s.Styled = lo.CoalesceOrEmpty(s.Styled, d.Styled)
	s.FullScreen = lo.CoalesceOrEmpty(s.FullScreen, d.FullScreen)
	s.Avatars = lo.Compact(s.Avatars)
	if len(s.Avatars) == 0 {
		s.Avatars = d.Avatars
	}
	return s
}

// jsLiteral renders v as a JavaScript literal.
func jsLiteral(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// observerScript runs on every new top-level document. Once the DOM is
// parsed it watches the body for structural changes and reports each
// batch; then it announces the page as ready.
func observerScript() string {
	return fmt.Sprintf(`(() => {
  if (window.top !== window || window.__commentflowObserver) return;
  const start = () => {
    const observer = new MutationObserver((records) => {
      const batch = records.map((r) => ({ added: r.addedNodes.length }));
      if (!batch.some((m) => m.added > 0)) return;
      window[%[1]s](JSON.stringify(batch));
    });
    observer.observe(document.body, { subtree: true, childList: true });
    window.__commentflowObserver = observer;
    window[%[2]s]("");
  };
  if (document.readyState === "loading") {
    document.addEventListener("DOMContentLoaded", start, { once: true });
  } else {
    start();
  }
})();`, jsLiteral(bindingMutation), jsLiteral(bindingReady))
}

// keyScript reports keydowns matching sc and keeps the page from acting on them.
func keyScript(sc extractor.Shortcut) string {
	return fmt.Sprintf(`(() => {
  if (window.top !== window) return;
  const sc = %[1]s;
  document.addEventListener("keydown", (e) => {
    if (e.key.toLowerCase() !== sc.key.toLowerCase()) return;
    if (e.ctrlKey !== sc.ctrl || e.shiftKey !== sc.shift || e.altKey !== sc.alt || e.metaKey !== sc.meta) return;
    e.preventDefault();
    window[%[2]s](JSON.stringify({ key: e.key, ctrl: e.ctrlKey, shift: e.shiftKey, alt: e.altKey, meta: e.metaKey }));
  });
})();`, jsLiteral(extractor.KeyEvent(sc)), jsLiteral(bindingKey))
}

// snapshotScript reads both message lists with color candidates for each
// node. It evaluates to an extractor.Snapshot.
func snapshotScript(sel Selectors) string {
	return fmt.Sprintf(`(() => {
  const sel = %[1]s;
  const background = (el) => window.getComputedStyle(el).backgroundColor || "";
  const read = (selector) => Array.from(document.querySelectorAll(selector)).map((node) => {
    const colors = [];
    const parent = node.closest(sel.sender) || node.parentElement?.parentElement?.parentElement;
    if (parent) {
      for (const s of sel.avatars) {
        const el = parent.querySelector(s);
        if (el) colors.push({ source: "avatar", value: background(el) });
      }
      for (const el of parent.querySelectorAll(sel.styled)) {
        colors.push({ source: "styled", value: background(el) });
      }
    }
    return { text: node.textContent || "", colors };
  });
  return { popup: read(sel.popup), chat: read(sel.chat) };
})()`, jsLiteral(sel))
}
