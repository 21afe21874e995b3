package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"commentflow/internal/renderer"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
)

var errElementGone = errors.New("comment element no longer in the page")

// Overlay draws on the session's tab. Animations are kept in a page-side
// registry keyed by element id so later evaluations can await them.
type Overlay struct {
	session    *Session
	fullScreen string
}

var _ renderer.Surface = (*Overlay)(nil)

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

func (o *Overlay) eval(ctx context.Context, expr string, opts ...chromedp.EvaluateOption) error {
	var ok bool
	if err := o.session.run(ctx, chromedp.Evaluate(expr, &ok, opts...)); err != nil {
		return err
	}
	if !ok {
		return errElementGone
	}
	return nil
}

func (o *Overlay) Mount(ctx context.Context, text string) (renderer.Element, renderer.Viewport, error) {
	id := "commentflow-" + uuid.NewString()
	expr := fmt.Sprintf(`(() => {
  const el = document.createElement("span");
  el.id = %[1]s;
  el.className = "commentflow";
  el.textContent = %[2]s;
  const fs = document.querySelector(%[3]s);
  (fs || document.body).appendChild(el);
  return { width: window.innerWidth, height: window.innerHeight, scrollY: window.pageYOffset, fullScreen: !!fs };
})()`, jsLiteral(id), jsLiteral(text), jsLiteral(o.fullScreen))

	var vp renderer.Viewport
	if err := o.session.run(ctx, chromedp.Evaluate(expr, &vp)); err != nil {
		return nil, renderer.Viewport{}, err
	}
	return &element{overlay: o, id: id}, vp, nil
}

func (o *Overlay) EnsureStylesheet(ctx context.Context, id, href string) error {
	return o.eval(ctx, fmt.Sprintf(`(() => {
  if (!document.getElementById(%[1]s)) {
    const link = document.createElement("link");
    link.id = %[1]s;
    link.rel = "stylesheet";
    link.href = %[2]s;
    document.head.appendChild(link);
  }
  return true;
})()`, jsLiteral(id), jsLiteral(href)))
}

type element struct {
	overlay *Overlay
	id      string
}

func (e *element) Apply(ctx context.Context, s renderer.Style) error {
	return e.overlay.eval(ctx, fmt.Sprintf(`(() => {
  const el = document.getElementById(%[1]s);
  if (!el) return false;
  for (const [k, v] of %[2]s) el.style.setProperty(k, v);
  return true;
})()`, jsLiteral(e.id), jsLiteral(s.CSS())))
}

func (e *element) Animate(ctx context.Context, d time.Duration) (renderer.Animation, error) {
	err := e.overlay.eval(ctx, fmt.Sprintf(`(() => {
  const el = document.getElementById(%[1]s);
  if (!el) return false;
  const anim = el.animate({ left: -el.offsetWidth + "px" }, { duration: %[2]d, easing: "linear" });
  (window.__commentflowAnimations ||= {})[%[1]s] = anim;
  return true;
})()`, jsLiteral(e.id), d.Milliseconds()))
	if err != nil {
		return nil, err
	}
	return &animation{element: e}, nil
}

func (e *element) Remove(ctx context.Context) error {
	var ok bool
	return e.overlay.session.run(ctx, chromedp.Evaluate(fmt.Sprintf(`(() => {
  document.getElementById(%[1]s)?.remove();
  if (window.__commentflowAnimations) delete window.__commentflowAnimations[%[1]s];
  return true;
})()`, jsLiteral(e.id)), &ok))
}

type animation struct{ element *element }

func (a *animation) wait(ctx context.Context, promise string) error {
	return a.element.overlay.eval(ctx, fmt.Sprintf(`(() => {
  const anim = window.__commentflowAnimations && window.__commentflowAnimations[%[1]s];
  if (!anim) return false;
  return anim.%[2]s.then(() => true);
})()`, jsLiteral(a.element.id), promise), awaitPromise)
}

func (a *animation) Ready(ctx context.Context) error    { return a.wait(ctx, "ready") }
func (a *animation) Finished(ctx context.Context) error { return a.wait(ctx, "finished") }
