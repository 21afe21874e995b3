// Package panel serves the local settings page: appearance and streaming
// controls backed by the coordinator, plus a live feed of pipeline events.
package panel

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"commentflow/internal/bus"
	"commentflow/internal/domain"

	"github.com/samber/lo"
)

//go:embed panel_assets/*
var assetsFS embed.FS

const maxRequestBody = 16 << 10

// allowedMethods are the requests a settings page may issue. Slot clearing
// and delivery stay internal to the pipeline.
var allowedMethods = []domain.Method{
	domain.MethodSetComment,
	domain.MethodSetColor,
	domain.MethodGetColor,
	domain.MethodSetFontSize,
	domain.MethodGetFontSize,
	domain.MethodSetFontFamily,
	domain.MethodGetFontFamily,
	domain.MethodSetIsEnabledStreaming,
	domain.MethodGetIsEnabledStreaming,
	domain.MethodToggleIsEnabledStreaming,
}

// Config configures a Panel.
type Config struct {
	Addr   string
	Caller domain.Caller
	Events *bus.EventBus // optional; nil disables the live feed
	Logger *slog.Logger
}

// Panel is the settings HTTP server.
type Panel struct {
	addr   string
	caller domain.Caller
	events *bus.EventBus
	feedID string // EventBus handler, removed when Start returns
	logger *slog.Logger
	server *http.Server
	limit  *rateLimiter

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

func New(cfg Config) *Panel {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:9478"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	p := &Panel{
		addr:    cfg.Addr,
		caller:  cfg.Caller,
		events:  cfg.Events,
		logger:  cfg.Logger.With("component", "panel"),
		limit:   newRateLimiter(20, 10),
		clients: make(map[*wsClient]struct{}),
	}
	if p.events != nil {
		p.feedID = p.events.On("*", p.broadcastEvent)
	}
	return p
}

// Handler returns the panel's routes.
func (p *Panel) Handler() http.Handler {
	mux := http.NewServeMux()
	assets, _ := fs.Sub(assetsFS, "panel_assets")
	mux.Handle("GET /", http.FileServerFS(assets))
	mux.HandleFunc("GET /api/options", p.handleOptions)
	mux.HandleFunc("POST /api/request", p.handleRequest)
	mux.HandleFunc("GET /ws", p.handleUpgrade)
	return mux
}

// Start serves until ctx ends, then detaches the feed from the EventBus.
func (p *Panel) Start(ctx context.Context) error {
	defer p.detach()

	p.server = &http.Server{
		Addr:              p.addr,
		Handler:           p.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	p.logger.Info("settings panel starting", "url", "http://"+p.addr+"/")

	errCh := make(chan error, 1)
	go func() {
		if err := p.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		p.closeAllClients()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return p.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (p *Panel) detach() {
	if p.events != nil && p.feedID != "" {
		p.events.Off("*", p.feedID)
		p.feedID = ""
	}
}

type optionsResponse struct {
	Colors       []string `json:"colors"`
	FontSizes    []string `json:"fontSizes"`
	FontFamilies []string `json:"fontFamilies"`
}

func (p *Panel) handleOptions(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, optionsResponse{
		Colors:       domain.Colors,
		FontSizes:    domain.FontSizes,
		FontFamilies: domain.FontFamilies,
	})
}

type apiResponse struct {
	Present bool   `json:"present"`
	Value   string `json:"value,omitempty"`
	Flag    bool   `json:"flag"`
	Error   string `json:"error,omitempty"`
}

// handleRequest decodes a wire message, forwards it to the coordinator and
// returns its answer.
func (p *Panel) handleRequest(rw http.ResponseWriter, r *http.Request) {
	if !p.limit.Allow() {
		writeJSON(rw, http.StatusTooManyRequests, apiResponse{Error: "too many requests"})
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeJSON(rw, http.StatusBadRequest, apiResponse{Error: "cannot read body"})
		return
	}
	var msg domain.WireMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		writeJSON(rw, http.StatusBadRequest, apiResponse{Error: "invalid JSON"})
		return
	}
	if !lo.Contains(allowedMethods, msg.Method) {
		writeJSON(rw, http.StatusForbidden, apiResponse{Error: "method not allowed: " + string(msg.Method)})
		return
	}
	req, err := domain.DecodeRequest(msg)
	if err != nil {
		writeJSON(rw, http.StatusBadRequest, apiResponse{Error: err.Error()})
		return
	}

	resp, err := p.caller.Call(r.Context(), "panel", req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrContextInvalidated) {
			status = http.StatusServiceUnavailable
		}
		p.logger.Warn("panel request failed", "method", msg.Method, "err", err)
		writeJSON(rw, status, apiResponse{Error: err.Error()})
		return
	}
	writeJSON(rw, http.StatusOK, apiResponse{Present: resp.Present, Value: resp.Value, Flag: resp.Flag})
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}
