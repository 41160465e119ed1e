// Package upstream fala com o backend de faturamento: listagens de sessões e
// execuções e as operações de vinculação. Só leitura e os POSTs de vínculo —
// persistência, importação e as regras de negócio de verdade moram lá.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/faturamento/vinculacao/internal/model"
)

var ErrNaoAutorizado = errors.New("upstream: não autorizado")

// ErroNegocio é uma rejeição do backend (success:false ou 4xx com detail).
// A mensagem é repassada ao usuário exatamente como veio; não é erro de
// transporte e não derruba a tela.
type ErroNegocio struct {
	Mensagem string
}

func (e *ErroNegocio) Error() string { return e.Mensagem }

// PaginaSessoes é uma página de sessões como o backend devolve; não há
// paginação no cliente.
type PaginaSessoes struct {
	Itens      []model.Sessao
	Total      int
	Page       int
	TotalPages int
	HasMore    bool
}

type PaginaExecucoes struct {
	Itens      []model.Execucao
	Total      int
	Page       int
	TotalPages int
	HasMore    bool
}

// Adapter é o contrato consumido pelo controller de vinculação. Os fetches
// nunca mutam estado no servidor; as demais operações são os únicos caminhos
// de escrita deste serviço.
type Adapter interface {
	FetchSessoes(ctx context.Context, f model.FiltroSessoes) (*PaginaSessoes, error)
	FetchExecucoes(ctx context.Context, f model.FiltroExecucoes) (*PaginaExecucoes, error)
	VincularManual(ctx context.Context, sessaoID, execucaoID string) error
	Desvincular(ctx context.Context, execucaoID, codigoFichaTemp string) error
	VincularBatch(ctx context.Context) (*model.ResultadoBatch, string, error)
}

type Config struct {
	BaseURL string
	Token   string // token de serviço emitido pelo backend principal
	Timeout time.Duration
}

type httpAdapter struct {
	client *resty.Client
}

func NewHTTPAdapter(cfg Config) Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8000"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cli := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.Token != "" {
		cli.SetAuthToken(cfg.Token)
	}
	return &httpAdapter{client: cli}
}

// envelope padrão de todas as respostas do backend.
type envelope struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Error   *string `json:"error"`
	Detail  string  `json:"detail"`
}

func (h *httpAdapter) FetchSessoes(ctx context.Context, f model.FiltroSessoes) (*PaginaSessoes, error) {
	params := map[string]string{}
	if f.Search != "" {
		params["search"] = f.Search
	}
	if f.DataInicio != "" {
		params["data_inicio"] = f.DataInicio
	}
	if f.DataFim != "" {
		params["data_fim"] = f.DataFim
	}
	if f.Limit > 0 {
		params["limit"] = strconv.Itoa(f.Limit)
	}

	resp, err := h.client.R().SetContext(ctx).SetQueryParams(params).Get("/api/sessoes")
	if err != nil {
		return nil, fmt.Errorf("fetch sessões: %w", err)
	}
	if err = mapearErro(resp); err != nil {
		return nil, err
	}

	var body struct {
		envelope
		Items      []model.Sessao `json:"items"`
		Total      int            `json:"total"`
		Page       int            `json:"page"`
		TotalPages int            `json:"total_pages"`
		HasMore    bool           `json:"has_more"`
	}
	if err = json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("decode sessões: %w", err)
	}
	return &PaginaSessoes{
		Itens:      body.Items,
		Total:      body.Total,
		Page:       body.Page,
		TotalPages: body.TotalPages,
		HasMore:    body.HasMore,
	}, nil
}

func (h *httpAdapter) FetchExecucoes(ctx context.Context, f model.FiltroExecucoes) (*PaginaExecucoes, error) {
	params := map[string]string{}
	if f.Search != "" {
		params["search"] = f.Search
	}
	if f.LinkManualNecessario != nil {
		params["link_manual_necessario"] = strconv.FormatBool(*f.LinkManualNecessario)
	}
	if f.StatusVinculacao != "" {
		params["status_vinculacao"] = f.StatusVinculacao
	}
	if f.DataInicio != "" {
		params["data_inicio"] = f.DataInicio
	}
	if f.DataFim != "" {
		params["data_fim"] = f.DataFim
	}
	if f.OrderColumn != "" {
		params["order_column"] = f.OrderColumn
		if f.OrderDirection != "" {
			params["order_direction"] = f.OrderDirection
		}
	}
	if f.Limit > 0 {
		params["limit"] = strconv.Itoa(f.Limit)
	}

	resp, err := h.client.R().SetContext(ctx).SetQueryParams(params).Get("/api/execucoes")
	if err != nil {
		return nil, fmt.Errorf("fetch execuções: %w", err)
	}
	if err = mapearErro(resp); err != nil {
		return nil, err
	}

	var body struct {
		envelope
		Items      []model.Execucao `json:"items"`
		Total      int              `json:"total"`
		Page       int              `json:"page"`
		TotalPages int              `json:"total_pages"`
		HasMore    bool             `json:"has_more"`
	}
	if err = json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("decode execuções: %w", err)
	}
	return &PaginaExecucoes{
		Itens:      body.Items,
		Total:      body.Total,
		Page:       body.Page,
		TotalPages: body.TotalPages,
		HasMore:    body.HasMore,
	}, nil
}

func (h *httpAdapter) VincularManual(ctx context.Context, sessaoID, execucaoID string) error {
	resp, err := h.client.R().SetContext(ctx).
		SetBody(map[string]string{"sessao_id": sessaoID, "execucao_id": execucaoID}).
		Post("/api/vinculacoes/manual")
	if err != nil {
		return fmt.Errorf("vincular manual: %w", err)
	}
	return mapearErro(resp)
}

func (h *httpAdapter) Desvincular(ctx context.Context, execucaoID, codigoFichaTemp string) error {
	resp, err := h.client.R().SetContext(ctx).
		SetBody(map[string]string{"execucao_id": execucaoID, "codigo_ficha": codigoFichaTemp}).
		Post("/api/vinculacoes/desvincular")
	if err != nil {
		return fmt.Errorf("desvincular: %w", err)
	}
	return mapearErro(resp)
}

func (h *httpAdapter) VincularBatch(ctx context.Context) (*model.ResultadoBatch, string, error) {
	resp, err := h.client.R().SetContext(ctx).Post("/api/vinculacoes/batch")
	if err != nil {
		return nil, "", fmt.Errorf("vincular batch: %w", err)
	}
	if err = mapearErro(resp); err != nil {
		return nil, "", err
	}

	var body struct {
		envelope
		Details *model.ResultadoBatch `json:"details"`
	}
	if err = json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, "", fmt.Errorf("decode batch: %w", err)
	}
	return body.Details, body.Message, nil
}

// mapearErro traduz a resposta em erro. Qualquer corpo com success:false é
// rejeição de negócio com a mensagem repassada verbatim, mesmo em status 200.
func mapearErro(resp *resty.Response) error {
	var env envelope
	decodificou := json.Unmarshal(resp.Body(), &env) == nil

	if resp.StatusCode() >= http.StatusOK && resp.StatusCode() < http.StatusMultipleChoices {
		if decodificou && !env.Success {
			return &ErroNegocio{Mensagem: mensagemDe(env)}
		}
		return nil
	}
	if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden {
		return ErrNaoAutorizado
	}
	if decodificou {
		if m := mensagemDe(env); m != "" {
			return &ErroNegocio{Mensagem: m}
		}
	}
	body := strings.TrimSpace(string(resp.Body()))
	if body == "" {
		body = http.StatusText(resp.StatusCode())
	}
	return fmt.Errorf("upstream http %d: %s", resp.StatusCode(), body)
}

func mensagemDe(env envelope) string {
	if env.Detail != "" {
		return env.Detail
	}
	if env.Message != "" {
		return env.Message
	}
	if env.Error != nil && *env.Error != "" {
		return *env.Error
	}
	return ""
}
