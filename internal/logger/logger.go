// Package logger é um wrapper fino sobre zerolog com construtor padrão e
// helpers de contexto. O Logger embute zerolog.Logger, então toda a API
// (Info, Warn, Error...) fica disponível direto.
package logger

import (
	"context"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

type Logger struct {
	zerolog.Logger
}

type ctxKey struct{}

// New cria um logger JSON em stdout com o campo "service" fixo.
// level aceita os nomes do zerolog (debug, info, warn, error); inválido vira info.
func New(service, level string) *Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	l := zerolog.New(os.Stdout).Level(lvl).With().
		Str("service", service).
		Timestamp().
		Logger()
	return &Logger{l}
}

// WithRequestID devolve um logger com o campo request_id preenchido.
func (l *Logger) WithRequestID(rid string) *Logger {
	if rid == "" {
		return l
	}
	return &Logger{l.With().Str("request_id", rid).Logger()}
}

// IntoContext guarda o logger no contexto da request.
func (l *Logger) IntoContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext recupera o logger do contexto; se ausente, devolve um logger
// descartável para não quebrar chamadas em testes.
func FromContext(ctx context.Context) *Logger {
	if l, _ := ctx.Value(ctxKey{}).(*Logger); l != nil {
		return l
	}
	return &Logger{zerolog.Nop()}
}
