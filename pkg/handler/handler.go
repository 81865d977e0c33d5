// Package handler answers a single request on an accepted connection. It is
// the body of every job the TCP server submits to the worker pool.
package handler

import (
	"bufio"
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fluxorio/exchanger/pkg/core"
	"github.com/fluxorio/exchanger/pkg/exchange"
	"github.com/fluxorio/exchanger/pkg/tcp"
)

const (
	StatusOK       = "HTTP/1.1 200 OK"
	StatusNotFound = "HTTP/1.1 404 NOT FOUND"
	StatusError    = "HTTP/1.1 500 INTERNAL SERVER ERROR"

	RouteIndex  = "GET / HTTP/1.1"
	RouteLatest = "GET /latest HTTP/1.1"

	// DefaultWindowDays is the estimate length served on /latest
	DefaultWindowDays = 4

	maxRequestLine = 8 << 10
)

// ErrRequestLineTooLong is returned when no line break arrives within the read limit
var ErrRequestLineTooLong = errors.New("handler: request line too long")

//go:embed assets/pages/*.html
var pages embed.FS

// RateSource produces the /latest body
type RateSource interface {
	RateResponse(ctx context.Context, days int) (*exchange.RateResponse, error)
}

// Handler routes request lines to pages or rate estimates
type Handler struct {
	rates      RateSource
	windowDays int
	logger     core.Logger
	hello      []byte
	notFound   []byte
}

// New creates a handler serving windowDays estimates from rates
func New(rates RateSource, windowDays int, logger core.Logger) *Handler {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	if logger == nil {
		logger = core.NewDefaultLogger()
	}
	return &Handler{
		rates:      rates,
		windowDays: windowDays,
		logger:     logger,
		hello:      mustPage("hello.html"),
		notFound:   mustPage("404.html"),
	}
}

func mustPage(name string) []byte {
	data, err := pages.ReadFile("assets/pages/" + name)
	if err != nil {
		panic(fmt.Sprintf("handler: missing embedded page %s: %v", name, err))
	}
	return data
}

// Handle adapts the handler to the TCP server
func (h *Handler) Handle(cctx *tcp.ConnContext) error {
	return h.ServeConn(cctx.Context, cctx.Conn)
}

// ServeConn reads one request line from rw and writes exactly one response
func (h *Handler) ServeConn(ctx context.Context, rw io.ReadWriter) error {
	line, err := ReadRequestLine(rw)
	if err != nil {
		return err
	}

	status, body := h.Respond(ctx, line)
	if _, err := io.WriteString(rw, FormatResponse(status, body)); err != nil {
		return fmt.Errorf("handler: write response: %w", err)
	}
	return nil
}

// Respond selects status and body for a request line
func (h *Handler) Respond(ctx context.Context, requestLine string) (string, []byte) {
	switch requestLine {
	case RouteIndex:
		return StatusOK, h.hello
	case RouteLatest:
		return h.latest(ctx)
	default:
		return StatusNotFound, h.notFound
	}
}

type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func (h *Handler) latest(ctx context.Context) (string, []byte) {
	resp, err := h.rates.RateResponse(ctx, h.windowDays)
	if err == nil {
		body, encErr := resp.JSON()
		if encErr == nil {
			return StatusOK, body
		}
		err = encErr
	}

	h.logger.WithFields(map[string]interface{}{
		"request_id": core.GetRequestID(ctx),
	}).Errorf("failed to build rate response: %v", err)

	body, encErr := core.JSONEncode(errorBody{
		Error:     "rates_unavailable",
		Message:   err.Error(),
		RequestID: core.GetRequestID(ctx),
	})
	if encErr != nil {
		body = []byte(`{"error":"rates_unavailable"}`)
	}
	return StatusError, body
}

// ReadRequestLine returns the first line of r without its line ending.
// A final line without a line break is accepted.
func ReadRequestLine(r io.Reader) (string, error) {
	br := bufio.NewReaderSize(r, 1024)
	var b strings.Builder
	for {
		chunk, err := br.ReadSlice('\n')
		b.Write(chunk)
		if b.Len() > maxRequestLine {
			return "", ErrRequestLineTooLong
		}
		switch {
		case err == nil:
			return trimLineEnding(b.String()), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && b.Len() > 0:
			return trimLineEnding(b.String()), nil
		default:
			return "", fmt.Errorf("handler: read request line: %w", err)
		}
	}
}

// trimLineEnding drops one "\n" and then one "\r", nothing more
func trimLineEnding(s string) string {
	return strings.TrimSuffix(strings.TrimSuffix(s, "\n"), "\r")
}

// FormatResponse frames body as status line, Content-Length header and body
func FormatResponse(status string, body []byte) string {
	return fmt.Sprintf("%s\r\nContent-Length: %d\r\n\r\n%s", status, len(body), body)
}
