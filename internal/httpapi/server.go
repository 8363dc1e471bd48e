// Package httpapi serves the interpretation, template and code generation endpoints over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/iamvkosarev/easymatter-bot/config"
	"github.com/iamvkosarev/easymatter-bot/internal/catalog"
	"github.com/iamvkosarev/easymatter-bot/internal/usecase"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type ServerDeps struct {
	Interpreter usecase.Interpreter
	// Explainer is optional. Without it guidance comes from the template explanations only.
	Explainer usecase.PropertyExplainer
	Catalog   *catalog.Catalog
	Generator usecase.CodeGenerator
	Logger    *zap.Logger
}

type Server struct {
	ServerDeps
	app     config.App
	cfg     config.HTTP
	handler http.Handler
}

func NewServer(deps ServerDeps, app config.App, cfg config.HTTP) *Server {
	s := &Server{
		ServerDeps: deps,
		app:        app,
		cfg:        cfg,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHealth)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/info", s.handleInfo)
	mux.HandleFunc("POST /api/chat/query", s.handleChatQuery)
	mux.HandleFunc("POST /api/chat/property-guidance", s.handlePropertyGuidance)
	mux.HandleFunc("GET /api/templates", s.handleListTemplates)
	mux.HandleFunc("GET /api/templates/popular", s.handlePopularTemplates)
	mux.HandleFunc("GET /api/templates/{id}", s.handleGetTemplate)
	mux.HandleFunc("GET /api/templates/{id}/examples", s.handleTemplateExamples)
	mux.HandleFunc("POST /api/codegen", s.handleCodegen)
	mux.HandleFunc("POST /api/codegen/notebook", s.handleNotebook)

	s.handler = chainMiddlewares(mux, withCORS(cfg.AllowedOrigins), withLogging(deps.Logger))
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is done, then shuts down within cfg.ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("http server started", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown http server: %w", err)
	}
	s.Logger.Info("http server stopped")
	return nil
}
