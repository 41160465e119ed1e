package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/faturamento/vinculacao/internal/cache"
	"github.com/faturamento/vinculacao/internal/link"
	"github.com/faturamento/vinculacao/internal/logger"
	"github.com/faturamento/vinculacao/internal/middleware"
	"github.com/faturamento/vinculacao/internal/model"
	"github.com/faturamento/vinculacao/internal/upstream"
)

// Handler agrupa as dependências dos endpoints de conciliação.
type Handler struct {
	Ctrl  *link.Controller
	Cache *cache.TTL
	Log   *logger.Logger
}

func escreverJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func escreverErro(w http.ResponseWriter, status int, msg string) {
	escreverJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   msg,
	})
}

// responderFalha traduz o erro para o envelope. Rejeições de negócio do
// backend vão verbatim; validações locais idem; falha de transporte vira
// mensagem genérica com convite a tentar de novo (sem retry automático).
func (h *Handler) responderFalha(w http.ResponseWriter, r *http.Request, err error) {
	var negocio *upstream.ErroNegocio
	switch {
	case errors.Is(err, link.ErrSelecaoIncompleta),
		errors.Is(err, link.ErrTipoInvalido),
		errors.Is(err, link.ErrItemNaoEncontrado),
		errors.Is(err, link.ErrExecucaoJaVinculada),
		errors.Is(err, link.ErrExecucaoNaoVinculada):
		escreverErro(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, link.ErrOperacaoEmAndamento):
		escreverErro(w, http.StatusConflict, err.Error())
	case errors.As(err, &negocio):
		escreverErro(w, http.StatusUnprocessableEntity, negocio.Mensagem)
	case errors.Is(err, upstream.ErrNaoAutorizado):
		h.logDe(r).Error().Err(err).Msg("serviço sem autorização no upstream")
		escreverErro(w, http.StatusBadGateway, "falha de autorização com o backend de faturamento")
	default:
		h.logDe(r).Warn().Err(err).Str("path", r.URL.Path).Msg("falha de comunicação com o upstream")
		escreverErro(w, http.StatusBadGateway, "não foi possível comunicar com o backend de faturamento; tente novamente")
	}
}

func (h *Handler) logDe(r *http.Request) *logger.Logger {
	return h.Log.WithRequestID(middleware.RequestIDFromContext(r.Context()))
}

// ListSessoes — GET /api/sessoes. Recarrega o snapshot de sessões com os
// filtros pedidos e devolve a página no envelope padrão. Em falha o
// snapshot anterior permanece no controller; o front mantém o que exibia.
func (h *Handler) ListSessoes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filtro := model.FiltroSessoes{
		Search:     strings.TrimSpace(q.Get("search")),
		DataInicio: q.Get("data_inicio"),
		DataFim:    q.Get("data_fim"),
		Limit:      ParseLimit(r),
	}

	chave := "sessoes:" + r.URL.RawQuery
	if cached := h.Cache.Get(chave); cached != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(cached)
		return
	}

	pagina, err := h.Ctrl.AtualizarSessoes(r.Context(), filtro)
	if err != nil {
		h.responderFalha(w, r, err)
		return
	}
	body := map[string]interface{}{
		"success":     true,
		"items":       pagina.Itens,
		"total":       pagina.Total,
		"page":        pagina.Page,
		"total_pages": pagina.TotalPages,
		"has_more":    pagina.HasMore,
	}
	if raw, err := json.Marshal(body); err == nil {
		h.Cache.Set(chave, raw)
	}
	escreverJSON(w, http.StatusOK, body)
}

// ListExecucoes — GET /api/execucoes, com os filtros extras da coleção:
// tri-state de link_manual_necessario, status de vinculação e ordenação.
func (h *Handler) ListExecucoes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filtro := model.FiltroExecucoes{
		Search:         strings.TrimSpace(q.Get("search")),
		DataInicio:     q.Get("data_inicio"),
		DataFim:        q.Get("data_fim"),
		OrderColumn:    q.Get("order_column"),
		OrderDirection: q.Get("order_direction"),
		Limit:          ParseLimit(r),
	}
	switch q.Get("link_manual_necessario") {
	case "true":
		v := true
		filtro.LinkManualNecessario = &v
	case "false":
		v := false
		filtro.LinkManualNecessario = &v
	case "":
		// qualquer
	default:
		escreverErro(w, http.StatusBadRequest, "link_manual_necessario deve ser true ou false")
		return
	}
	switch s := q.Get("status_vinculacao"); s {
	case "", model.StatusTodas:
	case model.StatusVinculada, model.StatusNaoVinculada:
		filtro.StatusVinculacao = s
	default:
		escreverErro(w, http.StatusBadRequest, "status_vinculacao inválido")
		return
	}

	chave := "execucoes:" + r.URL.RawQuery
	if cached := h.Cache.Get(chave); cached != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(cached)
		return
	}

	pagina, err := h.Ctrl.AtualizarExecucoes(r.Context(), filtro)
	if err != nil {
		h.responderFalha(w, r, err)
		return
	}
	body := map[string]interface{}{
		"success":     true,
		"items":       pagina.Itens,
		"total":       pagina.Total,
		"page":        pagina.Page,
		"total_pages": pagina.TotalPages,
		"has_more":    pagina.HasMore,
	}
	if raw, err := json.Marshal(body); err == nil {
		h.Cache.Set(chave, raw)
	}
	escreverJSON(w, http.StatusOK, body)
}

// GetSelecao — GET /api/selecao: estado da seleção e candidatas destacadas.
func (h *Handler) GetSelecao(w http.ResponseWriter, r *http.Request) {
	sel, candidatas := h.Ctrl.Selecao()
	escreverJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"selecao":    sel,
		"candidatas": idsOuVazio(candidatas),
	})
}

type selecionarRequest struct {
	Tipo string `json:"tipo"`
	ID   string `json:"id"`
}

// PostSelecao — POST /api/selecao: clique em um item (ou gesto de arrastar;
// o front traduz ambos para a mesma chamada).
func (h *Handler) PostSelecao(w http.ResponseWriter, r *http.Request) {
	var req selecionarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		escreverErro(w, http.StatusBadRequest, "corpo inválido")
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		escreverErro(w, http.StatusBadRequest, "id é obrigatório")
		return
	}
	sel, candidatas, err := h.Ctrl.SelecionarItem(req.Tipo, req.ID)
	if err != nil {
		h.responderFalha(w, r, err)
		return
	}
	escreverJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"selecao":    sel,
		"candidatas": idsOuVazio(candidatas),
	})
}

// DeleteSelecao — DELETE /api/selecao: limpa para SemSelecao.
func (h *Handler) DeleteSelecao(w http.ResponseWriter, r *http.Request) {
	sel := h.Ctrl.LimparSelecao()
	escreverJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"selecao":    sel,
		"candidatas": []string{},
	})
}

type vincularManualRequest struct {
	SessaoID   string `json:"sessao_id"`
	ExecucaoID string `json:"execucao_id"`
}

// PostVinculoManual — POST /api/vinculacoes/manual: confirma o par. As
// pré-condições locais respondem 400 sem chamada de rede.
func (h *Handler) PostVinculoManual(w http.ResponseWriter, r *http.Request) {
	var req vincularManualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		escreverErro(w, http.StatusBadRequest, "corpo inválido")
		return
	}
	if err := h.Ctrl.ConfirmarVinculo(r.Context(), req.SessaoID, req.ExecucaoID); err != nil {
		h.responderFalha(w, r, err)
		return
	}
	h.invalidarListagens()
	escreverJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "vínculo criado",
	})
}

// PostDesvincular — POST /api/execucoes/{execucaoId}/desvincular.
func (h *Handler) PostDesvincular(w http.ResponseWriter, r *http.Request) {
	execucaoID := mux.Vars(r)["execucaoId"]
	if err := h.Ctrl.Desvincular(r.Context(), execucaoID); err != nil {
		h.responderFalha(w, r, err)
		return
	}
	h.invalidarListagens()
	escreverJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "execução desvinculada",
	})
}

// PostVinculoAuto — POST /api/vinculacoes/auto: rodada local de vínculo
// automático sobre os snapshots atuais. Zero vínculos é resultado normal.
func (h *Handler) PostVinculoAuto(w http.ResponseWriter, r *http.Request) {
	res, err := h.Ctrl.VincularAutomatico(r.Context())
	if err != nil {
		h.responderFalha(w, r, err)
		return
	}
	if res.Vinculadas > 0 {
		h.invalidarListagens()
	}
	msg := "nenhum novo vínculo encontrado"
	if res.Vinculadas > 0 {
		msg = fmt.Sprintf("%d vínculo(s) criado(s) de %d par(es) encontrado(s)", res.Vinculadas, res.Tentativas)
	}
	escreverJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"message":    msg,
		"vinculadas": res.Vinculadas,
		"tentativas": res.Tentativas,
	})
}

// PostVinculoBatch — POST /api/vinculacoes/batch: dispara o job do backend e
// repassa mensagem e contadores exatamente como recebidos.
func (h *Handler) PostVinculoBatch(w http.ResponseWriter, r *http.Request) {
	detalhes, mensagem, err := h.Ctrl.VincularBatch(r.Context())
	if err != nil {
		h.responderFalha(w, r, err)
		return
	}
	h.invalidarListagens()
	body := map[string]interface{}{
		"success": true,
		"message": mensagem,
	}
	if detalhes != nil {
		body["details"] = detalhes
	}
	escreverJSON(w, http.StatusOK, body)
}

func (h *Handler) invalidarListagens() {
	h.Cache.DeletePrefix("sessoes:")
	h.Cache.DeletePrefix("execucoes:")
}

// idsOuVazio evita null no JSON quando não há candidatas.
func idsOuVazio(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
