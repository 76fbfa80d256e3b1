package web

import (
	"context"
	"log"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/avstrong/reservations/internal/booking"
	"github.com/avstrong/reservations/internal/logger"
)

type Server struct {
	srv         *http.Server
	router      *http.ServeMux
	l           *logger.Logger
	conf        Conf
	bManager    *booking.Manager
	coordinator *booking.StatusCoordinator
	stats       *booking.StatisticsReporter
	tracer      trace.Tracer
}

type Conf struct {
	L                 *logger.Logger
	ServerLogger      *log.Logger
	Tracer            trace.Tracer
	Host              string
	Port              string
	ReadHeaderTimeout time.Duration
	LivenessEndpoint  string
}

func New(
	ctx context.Context,
	conf Conf,
	bookingManager *booking.Manager,
	coordinator *booking.StatusCoordinator,
	stats *booking.StatisticsReporter,
) (*Server, error) {
	mux := http.NewServeMux()

	//nolint:exhaustruct
	srv := &http.Server{
		Addr:              net.JoinHostPort(conf.Host, conf.Port),
		ReadHeaderTimeout: conf.ReadHeaderTimeout,
		ErrorLog:          conf.ServerLogger,
		Handler:           mux,
		BaseContext: func(listener net.Listener) context.Context {
			return ctx
		},
	}

	server := &Server{
		srv:         srv,
		router:      mux,
		l:           conf.L,
		conf:        conf,
		bManager:    bookingManager,
		coordinator: coordinator,
		stats:       stats,
		tracer:      conf.Tracer,
	}

	server.addRoutes(mux)

	return server, nil
}

func (s *Server) Srv() *http.Server {
	return s.srv
}

// Handler exposes the routed handler, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}
