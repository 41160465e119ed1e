package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/faturamento/vinculacao/internal/logger"
)

// Recover captura panics e devolve JSON consistente no envelope padrão.
// O stack vai para o log estruturado, nunca para a resposta.
func Recover(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error().
						Str("request_id", r.Header.Get("X-Request-ID")).
						Str("path", r.URL.Path).
						Interface("panic", rec).
						Bytes("stack", debug.Stack()).
						Msg("panic recuperado")
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]interface{}{
						"success":    false,
						"error":      "internal",
						"request_id": r.Header.Get("X-Request-ID"),
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
