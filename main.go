package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/faturamento/vinculacao/internal/api"
	"github.com/faturamento/vinculacao/internal/cache"
	"github.com/faturamento/vinculacao/internal/config"
	"github.com/faturamento/vinculacao/internal/link"
	"github.com/faturamento/vinculacao/internal/logger"
	"github.com/faturamento/vinculacao/internal/middleware"
	"github.com/faturamento/vinculacao/internal/upstream"
)

func main() {
	// .env opcional em dev; em produção tudo vem do ambiente
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.New("vinculacao", cfg.LogLevel)

	adapter := upstream.NewHTTPAdapter(upstream.Config{
		BaseURL: cfg.UpstreamBaseURL,
		Token:   cfg.UpstreamToken,
		Timeout: time.Duration(cfg.UpstreamTimeoutSec) * time.Second,
	})
	ctrl := link.NewController(adapter, log)
	h := &api.Handler{
		Ctrl:  ctrl,
		Cache: cache.New(time.Duration(cfg.ListCacheTTLSec) * time.Second),
		Log:   log,
	}

	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)

	apiRouter := r.PathPrefix("/api").Subrouter()
	// Ingestão de erros do frontend (sem PII). Auth é opcional: se houver JWT, enriquece o contexto.
	apiRouter.Handle("/errors/frontend", middleware.OptionalAuth([]byte(cfg.JWTSecret))(http.HandlerFunc(h.IngestFrontendError))).Methods(http.MethodPost)

	protected := r.PathPrefix("/api").Subrouter()
	protected.Use(middleware.RequireAuthMiddleware([]byte(cfg.JWTSecret)))
	protected.HandleFunc("/sessoes", h.ListSessoes).Methods(http.MethodGet)
	protected.HandleFunc("/execucoes", h.ListExecucoes).Methods(http.MethodGet)
	protected.HandleFunc("/selecao", h.GetSelecao).Methods(http.MethodGet)
	protected.HandleFunc("/selecao", h.PostSelecao).Methods(http.MethodPost)
	protected.HandleFunc("/selecao", h.DeleteSelecao).Methods(http.MethodDelete)
	protected.HandleFunc("/vinculacoes/manual", h.PostVinculoManual).Methods(http.MethodPost)
	protected.HandleFunc("/vinculacoes/auto", h.PostVinculoAuto).Methods(http.MethodPost)
	protected.HandleFunc("/vinculacoes/batch", h.PostVinculoBatch).Methods(http.MethodPost)
	protected.HandleFunc("/execucoes/{execucaoId}/desvincular", h.PostDesvincular).Methods(http.MethodPost)

	chain := middleware.Recover(log)(middleware.RequestID(middleware.Timeout(cfg.RequestTimeoutSec)(middleware.CORS(cfg.CORSOrigins())(middleware.Gzip(r)))))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      chain,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("upstream", cfg.UpstreamBaseURL).Msg("serviço de vinculação no ar")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	log.Info().Msg("serviço encerrado")
}
