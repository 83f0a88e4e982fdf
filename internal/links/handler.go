package links

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/skip2/go-qrcode"

	"github.com/sundayezeilo/tinylink/internal/errx"
	"github.com/sundayezeilo/tinylink/internal/httpx"
)

const (
	DefaultQRSize = 256
	MinQRSize     = 64
	MaxQRSize     = 1024
)

// HTTPCreateLinkRequest is the JSON body of POST /api/links.
type HTTPCreateLinkRequest struct {
	URL  string `json:"url"`
	Code string `json:"code,omitempty"`
}

// LinkResponse is the JSON form of a link.
type LinkResponse struct {
	Code        string     `json:"code"`
	URL         string     `json:"url"`
	Clicks      int64      `json:"clicks"`
	CreatedAt   time.Time  `json:"created_at"`
	LastClicked *time.Time `json:"last_clicked"`
	ShortURL    string     `json:"short_url"`
}

// CounterResponse is one element of GET /api/links?view=counters.
type CounterResponse struct {
	Code        string     `json:"code"`
	Clicks      int64      `json:"clicks"`
	LastClicked *time.Time `json:"last_clicked"`
}

// Handler provides the HTTP handlers for links and redirects.
type Handler struct {
	service Service
	logger  *slog.Logger
	baseURL string
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Service Service
	Logger  *slog.Logger
	BaseURL string // prefix of every short_url, e.g. "https://tiny.example"
}

// NewHandler creates a new Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		service: cfg.Service,
		logger:  logger,
		baseURL: cfg.BaseURL,
	}
}

func (h *Handler) toResponse(l Link) LinkResponse {
	return LinkResponse{
		Code:        l.Code,
		URL:         l.URL,
		Clicks:      l.Clicks,
		CreatedAt:   l.CreatedAt,
		LastClicked: l.LastClicked,
		ShortURL:    l.ShortURL(h.baseURL),
	}
}

// CreateLink handles POST /api/links.
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := httpx.DecodeJSON[HTTPCreateLinkRequest](w, r)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to decode request", "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, httpx.ErrorKindToCode(errx.Invalid), err.Error())
		return
	}

	link, err := h.service.Create(ctx, CreateLinkRequest{URL: req.URL, Code: req.Code})
	if err != nil {
		h.writeError(ctx, w, err, req.Code)
		return
	}

	h.logger.InfoContext(ctx, "link created",
		"code", link.Code,
		"custom_code", req.Code != "",
	)

	httpx.WriteJSON(w, http.StatusCreated, h.toResponse(link))
}

// ListLinks handles GET /api/links. With ?view=counters only the
// counter columns are returned.
func (h *Handler) ListLinks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	switch view := r.URL.Query().Get("view"); view {
	case "", "full":
	case "counters":
		h.listCounters(w, r)
		return
	default:
		httpx.WriteError(w, http.StatusBadRequest, httpx.ErrorKindToCode(errx.Invalid),
			"Unknown view "+strconv.Quote(view)+".")
		return
	}

	links, err := h.service.List(ctx)
	if err != nil {
		h.writeError(ctx, w, err, "")
		return
	}

	resp := make([]LinkResponse, 0, len(links))
	for _, l := range links {
		resp = append(resp, h.toResponse(l))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) listCounters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	counters, err := h.service.Counters(ctx)
	if err != nil {
		h.writeError(ctx, w, err, "")
		return
	}

	resp := make([]CounterResponse, 0, len(counters))
	for _, c := range counters {
		resp = append(resp, CounterResponse{
			Code:        c.Code,
			Clicks:      c.Clicks,
			LastClicked: c.LastClicked,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// GetLink handles GET /api/links/{code}.
func (h *Handler) GetLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := r.PathValue("code")

	link, err := h.service.Get(ctx, code)
	if err != nil {
		h.writeError(ctx, w, err, code)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.toResponse(link))
}

// DeleteLink handles DELETE /api/links/{code}.
func (h *Handler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := r.PathValue("code")

	if err := h.service.Delete(ctx, code); err != nil {
		h.writeError(ctx, w, err, code)
		return
	}

	h.logger.InfoContext(ctx, "link deleted", "code", code)
	httpx.WriteJSON(w, http.StatusOK, httpx.OKResponse{OK: true})
}

// QRCode handles GET /api/links/{code}/qr and renders the short URL as a PNG.
func (h *Handler) QRCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := r.PathValue("code")

	size := DefaultQRSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < MinQRSize || n > MaxQRSize {
			httpx.WriteError(w, http.StatusBadRequest, httpx.ErrorKindToCode(errx.Invalid),
				"size must be an integer between 64 and 1024")
			return
		}
		size = n
	}

	link, err := h.service.Get(ctx, code)
	if err != nil {
		h.writeError(ctx, w, err, code)
		return
	}

	png, err := qrcode.Encode(link.ShortURL(h.baseURL), qrcode.Medium, size)
	if err != nil {
		h.writeError(ctx, w, errx.E("links.handler.QRCode", errx.Internal, err), code)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// Redirect handles GET /{code}. Errors are plain text.
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := r.PathValue("code")

	target, err := h.service.Resolve(ctx, code)
	if err != nil {
		h.logError(ctx, err, code)
		if errx.KindOf(err) == errx.NotFound {
			httpx.WriteText(w, http.StatusNotFound, "Not found")
			return
		}
		httpx.WriteText(w, http.StatusInternalServerError, "Server error")
		return
	}

	h.logger.DebugContext(ctx, "redirect",
		"code", code,
		"referer", r.Referer(),
	)
	http.Redirect(w, r, target, http.StatusFound)
}

// writeError maps err to a JSON error response.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error, code string) {
	h.logError(ctx, err, code)

	kind := errx.KindOf(err)
	httpx.WriteError(w, httpx.ErrorKindToStatus(kind), httpx.ErrorKindToCode(kind), publicMessage(err))
}

func (h *Handler) logError(ctx context.Context, err error, code string) {
	attrs := []any{
		"error", err.Error(),
		"error_kind", errx.KindOf(err).String(),
		"operation", errx.OpOf(err),
	}
	if code != "" {
		attrs = append(attrs, "code", code)
	}

	if httpx.IsServerError(err) {
		h.logger.ErrorContext(ctx, "request failed", attrs...)
		return
	}
	h.logger.WarnContext(ctx, "request rejected", attrs...)
}

// publicMessage is the text shown to API clients. Storage details stay in the logs.
func publicMessage(err error) string {
	switch errx.KindOf(err) {
	case errx.Invalid:
		return errx.Cause(err)
	case errx.Conflict:
		return ErrCodeTaken.Error()
	case errx.NotFound:
		return ErrNotFound.Error()
	}
	if errors.Is(err, ErrGenerationExhausted) {
		return ErrGenerationExhausted.Error()
	}
	return "Server error"
}
