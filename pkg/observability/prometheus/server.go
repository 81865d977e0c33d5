package prometheus

import (
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Server serves /metrics for a gatherer over fasthttp
type Server struct {
	addr   string
	server *fasthttp.Server
}

// NewServer creates a metrics server bound to addr
func NewServer(addr string, gatherer prometheus.Gatherer) *Server {
	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(
		promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
	)

	return &Server{
		addr: addr,
		server: &fasthttp.Server{
			Name:         "exchanger-metrics",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			Handler: func(ctx *fasthttp.RequestCtx) {
				switch string(ctx.Path()) {
				case "/metrics":
					metricsHandler(ctx)
				case "/healthz":
					ctx.SetContentType("text/plain; charset=utf-8")
					ctx.SetBodyString("ok")
				default:
					ctx.Error("not found", fasthttp.StatusNotFound)
				}
			},
		},
	}
}

// Start listens on the configured address (blocking)
func (s *Server) Start() error {
	return s.server.ListenAndServe(s.addr)
}

// Serve serves on an existing listener (blocking)
func (s *Server) Serve(ln net.Listener) error {
	return s.server.Serve(ln)
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown() error {
	return s.server.Shutdown()
}
