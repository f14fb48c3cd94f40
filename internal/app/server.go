package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	_ "eldercare/backend/docs"
	"eldercare/backend/internal/handler"
	"eldercare/backend/internal/pkg/logging"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/sync/errgroup"
)

const (
	defaultReadTimeout     = 15 * time.Minute
	defaultWriteTimeout    = 15 * time.Minute
	defaultShutdownTimeout = 10 * time.Second
)

type routeRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

type Server struct {
	router          *mux.Router
	logger          *slog.Logger
	allowedOrigins  []string
	shutdownTimeout time.Duration
}

func NewServer(logger *slog.Logger, allowedOrigins []string, registrars ...routeRegistrar) *Server {
	router := mux.NewRouter()

	router.HandleFunc("/", handler.Root).Methods("GET")
	router.HandleFunc("/ping", handler.Ping).Methods("GET")

	for _, r := range registrars {
		r.RegisterRoutes(router)
	}

	router.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	return &Server{
		router:          router,
		logger:          logger,
		allowedOrigins:  allowedOrigins,
		shutdownTimeout: defaultShutdownTimeout,
	}
}

// Handler returns the router wrapped in CORS, access logging and panic recovery.
func (s *Server) Handler() http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins(s.allowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Requested-With"}),
	)

	h := cors(s.router)
	h = handlers.CombinedLoggingHandler(logging.NewAccessWriter(s.logger), h)
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError)),
	)(h)
	return h
}

// Run serves on port until ctx is done, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, port string) error {
	srv := &http.Server{
		Handler:      s.Handler(),
		Addr:         ":" + port,
		WriteTimeout: defaultWriteTimeout,
		ReadTimeout:  defaultReadTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("server starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		s.logger.Info("server shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
