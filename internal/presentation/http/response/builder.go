package response

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/pincer/pkg/errorbank"
)

// Plain-text bodies of raw responses.
const (
	ForbiddenBody      = "Error 403"
	InvalidRequestBody = "INTERNAL_ERROR"
)

// Builder helps construct consistent HTTP responses.
type Builder struct {
	ctx    echo.Context
	status int
	data   any
	err    error
	meta   map[string]any
	raw    bool
}

// New instantiates a Builder for the provided request context.
func New(ctx echo.Context) *Builder {
	return &Builder{ctx: ctx, status: http.StatusOK}
}

// WithStatus overrides the response status code.
func (b *Builder) WithStatus(status int) *Builder {
	if status > 0 {
		b.status = status
	}
	return b
}

// WithData attaches a success payload.
func (b *Builder) WithData(data any) *Builder {
	b.data = data
	return b
}

// WithError records an error to be rendered.
func (b *Builder) WithError(err error) *Builder {
	b.err = err
	return b
}

// WithMeta appends auxiliary metadata to the response.
func (b *Builder) WithMeta(key string, value any) *Builder {
	if key == "" {
		return b
	}
	if b.meta == nil {
		b.meta = make(map[string]any)
	}
	b.meta[key] = value
	return b
}

// Raw drops the envelope: data is written as-is (text for strings, JSON
// otherwise) and errors become plain-text bodies. Browser-facing endpoints
// use this form.
func (b *Builder) Raw() *Builder {
	b.raw = true
	return b
}

// Build finalises and emits the HTTP response.
func (b *Builder) Build() error {
	switch {
	case b.raw && b.err != nil:
		return b.buildRawError()
	case b.raw:
		return b.buildRawSuccess()
	case b.err != nil:
		return b.buildError()
	}
	return b.buildSuccess()
}

func (b *Builder) buildRawSuccess() error {
	if text, ok := b.data.(string); ok {
		return b.ctx.String(b.status, text)
	}
	return b.ctx.JSON(b.status, b.data)
}

func (b *Builder) buildRawError() error {
	appErr := errorbank.From(b.err)
	switch appErr.Kind() {
	case errorbank.KindForbidden:
		return b.ctx.String(http.StatusForbidden, ForbiddenBody)
	case errorbank.KindOrderFailed:
		return b.ctx.String(http.StatusOK, appErr.Message())
	case errorbank.KindBadRequest:
		return b.ctx.String(http.StatusOK, InvalidRequestBody)
	case errorbank.KindNotFound:
		return b.ctx.String(http.StatusNotFound, appErr.Message())
	default:
		return b.ctx.String(appErr.StatusCode(), InvalidRequestBody)
	}
}

func (b *Builder) buildSuccess() error {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	payload := struct {
		Success bool           `json:"success"`
		Data    any            `json:"data,omitempty"`
		Meta    map[string]any `json:"meta,omitempty"`
	}{
		Success: true,
		Data:    b.data,
		Meta:    b.meta,
	}
	return b.ctx.JSON(b.status, payload)
}

func (b *Builder) buildError() error {
	appErr := errorbank.From(b.err)
	status := b.status
	if status < 400 {
		status = appErr.StatusCode()
	}
	payload := struct {
		Success bool `json:"success"`
		Error   struct {
			Kind    string         `json:"kind"`
			Message string         `json:"message"`
			Details map[string]any `json:"details,omitempty"`
		} `json:"error"`
		Meta map[string]any `json:"meta,omitempty"`
	}{
		Success: false,
		Meta:    b.meta,
	}
	payload.Error.Kind = string(appErr.Kind())
	payload.Error.Message = appErr.Message()
	payload.Error.Details = appErr.Details()

	return b.ctx.JSON(status, payload)
}
