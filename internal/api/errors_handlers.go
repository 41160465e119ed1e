package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/faturamento/vinculacao/internal/auth"
	"github.com/faturamento/vinculacao/internal/middleware"
)

type frontendErrorRequest struct {
	RequestID  *string                `json:"request_id"`
	Severity   string                 `json:"severity"` // WARN|ERROR
	Kind       string                 `json:"kind"`
	Message    string                 `json:"message"`
	Stack      *string                `json:"stack,omitempty"`
	HTTPMethod *string                `json:"http_method,omitempty"`
	Path       *string                `json:"path,omitempty"`
	Status     *int                   `json:"status,omitempty"`
	ActionName *string                `json:"action_name,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// IngestFrontendError recebe erros reportados pelo front de conciliação e os
// registra no log estruturado (sem PII). Auth é opcional: se houver JWT,
// enriquece com o usuário.
func (h *Handler) IngestFrontendError(w http.ResponseWriter, r *http.Request) {
	var req frontendErrorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		escreverErro(w, http.StatusBadRequest, "corpo inválido")
		return
	}
	sev := strings.ToUpper(strings.TrimSpace(req.Severity))
	if sev != "WARN" && sev != "ERROR" {
		escreverErro(w, http.StatusBadRequest, "severity inválida")
		return
	}
	kind := strings.TrimSpace(req.Kind)
	if kind == "" {
		kind = "FRONTEND_ERROR"
	}
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		msg = "frontend error"
	}

	rid := middleware.RequestIDFromContext(r.Context())
	if req.RequestID != nil && strings.TrimSpace(*req.RequestID) != "" {
		rid = strings.TrimSpace(*req.RequestID)
	}

	ev := h.Log.WithRequestID(rid).Warn()
	if sev == "ERROR" {
		ev = h.Log.WithRequestID(rid).Error()
	}
	ev = ev.Str("kind", kind).Str("origem", "frontend")
	if c := auth.ClaimsFrom(r.Context()); c != nil {
		ev = ev.Str("user_id", c.UserID).Str("role", c.Role)
	}
	if req.Path != nil {
		ev = ev.Str("frontend_path", strings.TrimSpace(*req.Path))
	}
	if req.HTTPMethod != nil {
		ev = ev.Str("http_method", strings.ToUpper(strings.TrimSpace(*req.HTTPMethod)))
	}
	if req.Status != nil {
		ev = ev.Int("status", *req.Status)
	}
	if req.ActionName != nil {
		ev = ev.Str("action", strings.TrimSpace(*req.ActionName))
	}
	if req.Stack != nil && *req.Stack != "" {
		ev = ev.Str("stack", *req.Stack)
	}
	if len(req.Metadata) > 0 {
		ev = ev.Interface("metadata", req.Metadata)
	}
	ev.Msg(msg)

	escreverJSON(w, http.StatusAccepted, map[string]interface{}{"success": true})
}
