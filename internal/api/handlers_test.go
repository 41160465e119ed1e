package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/faturamento/vinculacao/internal/cache"
	"github.com/faturamento/vinculacao/internal/link"
	"github.com/faturamento/vinculacao/internal/logger"
	"github.com/faturamento/vinculacao/internal/model"
	"github.com/faturamento/vinculacao/internal/upstream"
)

type fakeAdapter struct {
	mu             sync.Mutex
	sessoes        []model.Sessao
	execucoes      []model.Execucao
	fetchSessoes   int
	fetchExecucoes int
	vinculos       int
	desvinculos    int
}

func (f *fakeAdapter) FetchSessoes(ctx context.Context, _ model.FiltroSessoes) (*upstream.PaginaSessoes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchSessoes++
	out := make([]model.Sessao, len(f.sessoes))
	copy(out, f.sessoes)
	return &upstream.PaginaSessoes{Itens: out, Total: len(out), Page: 1, TotalPages: 1}, nil
}

func (f *fakeAdapter) FetchExecucoes(ctx context.Context, _ model.FiltroExecucoes) (*upstream.PaginaExecucoes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchExecucoes++
	out := make([]model.Execucao, len(f.execucoes))
	copy(out, f.execucoes)
	return &upstream.PaginaExecucoes{Itens: out, Total: len(out), Page: 1, TotalPages: 1}, nil
}

func (f *fakeAdapter) VincularManual(ctx context.Context, sessaoID, execucaoID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vinculos++
	for i := range f.execucoes {
		if f.execucoes[i].ID == execucaoID {
			sid := sessaoID
			f.execucoes[i].SessaoID = &sid
		}
	}
	return nil
}

func (f *fakeAdapter) Desvincular(ctx context.Context, execucaoID, codigoFichaTemp string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.desvinculos++
	for i := range f.execucoes {
		if f.execucoes[i].ID == execucaoID {
			f.execucoes[i].SessaoID = nil
			f.execucoes[i].CodigoFicha = codigoFichaTemp
		}
	}
	return nil
}

func (f *fakeAdapter) VincularBatch(ctx context.Context) (*model.ResultadoBatch, string, error) {
	return &model.ResultadoBatch{TotalVinculadoSessao: 2}, "ok", nil
}

func novoAmbiente(fa *fakeAdapter) (*Handler, *mux.Router) {
	log := logger.FromContext(context.Background())
	h := &Handler{
		Ctrl:  link.NewController(fa, log),
		Cache: cache.New(time.Minute),
		Log:   log,
	}
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/sessoes", h.ListSessoes).Methods(http.MethodGet)
	api.HandleFunc("/execucoes", h.ListExecucoes).Methods(http.MethodGet)
	api.HandleFunc("/selecao", h.GetSelecao).Methods(http.MethodGet)
	api.HandleFunc("/selecao", h.PostSelecao).Methods(http.MethodPost)
	api.HandleFunc("/selecao", h.DeleteSelecao).Methods(http.MethodDelete)
	api.HandleFunc("/vinculacoes/manual", h.PostVinculoManual).Methods(http.MethodPost)
	api.HandleFunc("/vinculacoes/auto", h.PostVinculoAuto).Methods(http.MethodPost)
	api.HandleFunc("/vinculacoes/batch", h.PostVinculoBatch).Methods(http.MethodPost)
	api.HandleFunc("/execucoes/{execucaoId}/desvincular", h.PostDesvincular).Methods(http.MethodPost)
	api.HandleFunc("/errors/frontend", h.IngestFrontendError).Methods(http.MethodPost)
	return h, r
}

func fazer(r *mux.Router, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodificar(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("resposta não é JSON: %v (%s)", err, w.Body.String())
	}
	return out
}

func TestListSessoes_EnvelopeECache(t *testing.T) {
	fa := &fakeAdapter{sessoes: []model.Sessao{{ID: "S1", NumeroGuia: "60354715"}}}
	_, r := novoAmbiente(fa)

	w := fazer(r, http.MethodGet, "/api/sessoes?search=603", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d (%s)", w.Code, w.Body.String())
	}
	body := decodificar(t, w)
	if body["success"] != true {
		t.Errorf("success: %v", body["success"])
	}
	if body["total"].(float64) != 1 {
		t.Errorf("total: %v", body["total"])
	}

	// segunda chamada idêntica sai do cache, sem novo fetch
	fazer(r, http.MethodGet, "/api/sessoes?search=603", "")
	if fa.fetchSessoes != 1 {
		t.Errorf("fetchSessoes: %d, want 1 (cache)", fa.fetchSessoes)
	}
	// query diferente busca de novo
	fazer(r, http.MethodGet, "/api/sessoes?search=outra", "")
	if fa.fetchSessoes != 2 {
		t.Errorf("fetchSessoes: %d, want 2", fa.fetchSessoes)
	}
}

func TestListExecucoes_FiltroInvalido(t *testing.T) {
	fa := &fakeAdapter{}
	_, r := novoAmbiente(fa)

	w := fazer(r, http.MethodGet, "/api/execucoes?link_manual_necessario=talvez", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("tri-state inválido: %d", w.Code)
	}
	w = fazer(r, http.MethodGet, "/api/execucoes?status_vinculacao=qualquer", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status inválido: %d", w.Code)
	}
	if fa.fetchExecucoes != 0 {
		t.Error("filtro inválido chegou ao upstream")
	}
}

func TestFluxoSelecaoEVinculoManual(t *testing.T) {
	fa := &fakeAdapter{
		sessoes:   []model.Sessao{{ID: "S1", NumeroGuia: "60354715", DataSessao: "2025-03-18"}},
		execucoes: []model.Execucao{{ID: "E1", NumeroGuia: "60354715", DataExecucao: "2025-03-18"}},
	}
	_, r := novoAmbiente(fa)

	// carrega snapshots
	fazer(r, http.MethodGet, "/api/sessoes", "")
	fazer(r, http.MethodGet, "/api/execucoes", "")

	w := fazer(r, http.MethodPost, "/api/selecao", `{"tipo":"sessao","id":"S1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("selecionar: %d (%s)", w.Code, w.Body.String())
	}
	body := decodificar(t, w)
	cands := body["candidatas"].([]interface{})
	if len(cands) != 1 || cands[0] != "E1" {
		t.Errorf("candidatas: %v", cands)
	}

	w = fazer(r, http.MethodPost, "/api/vinculacoes/manual", `{"sessao_id":"S1","execucao_id":"E1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("vincular: %d (%s)", w.Code, w.Body.String())
	}
	if fa.vinculos != 1 {
		t.Errorf("vinculos no upstream: %d", fa.vinculos)
	}

	// seleção limpa após o sucesso
	w = fazer(r, http.MethodGet, "/api/selecao", "")
	body = decodificar(t, w)
	sel := body["selecao"].(map[string]interface{})
	if sel["estado"] != string(link.SemSelecao) {
		t.Errorf("estado pós vínculo: %v", sel["estado"])
	}
}

func TestPostVinculoManual_ValidacaoLocalSemRede(t *testing.T) {
	fa := &fakeAdapter{}
	_, r := novoAmbiente(fa)

	w := fazer(r, http.MethodPost, "/api/vinculacoes/manual", `{"sessao_id":"S1"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("sem execucao_id: %d", w.Code)
	}
	if fa.vinculos != 0 {
		t.Error("validação local chamou o upstream")
	}
}

func TestPostSelecao_CorpoInvalido(t *testing.T) {
	fa := &fakeAdapter{}
	_, r := novoAmbiente(fa)
	if w := fazer(r, http.MethodPost, "/api/selecao", `{`); w.Code != http.StatusBadRequest {
		t.Errorf("corpo inválido: %d", w.Code)
	}
	if w := fazer(r, http.MethodPost, "/api/selecao", `{"tipo":"sessao","id":" "}`); w.Code != http.StatusBadRequest {
		t.Errorf("id vazio: %d", w.Code)
	}
}

func TestPostVinculoAuto_Mensagens(t *testing.T) {
	// nenhum par compatível
	fa := &fakeAdapter{
		sessoes:   []model.Sessao{{ID: "S1", NumeroGuia: "g1", DataSessao: "2025-03-18"}},
		execucoes: []model.Execucao{{ID: "E1", NumeroGuia: "g2", DataExecucao: "2025-03-18"}},
	}
	_, r := novoAmbiente(fa)
	fazer(r, http.MethodGet, "/api/sessoes", "")
	fazer(r, http.MethodGet, "/api/execucoes", "")

	w := fazer(r, http.MethodPost, "/api/vinculacoes/auto", "")
	body := decodificar(t, w)
	if body["vinculadas"].(float64) != 0 {
		t.Errorf("vinculadas: %v", body["vinculadas"])
	}
	if !strings.Contains(body["message"].(string), "nenhum") {
		t.Errorf("mensagem de zero: %v", body["message"])
	}

	// um par compatível
	fa2 := &fakeAdapter{
		sessoes:   []model.Sessao{{ID: "S1", NumeroGuia: "g1", DataSessao: "2025-03-18"}},
		execucoes: []model.Execucao{{ID: "E1", NumeroGuia: "g1", DataExecucao: "2025-03-18"}},
	}
	_, r2 := novoAmbiente(fa2)
	fazer(r2, http.MethodGet, "/api/sessoes", "")
	fazer(r2, http.MethodGet, "/api/execucoes", "")

	w = fazer(r2, http.MethodPost, "/api/vinculacoes/auto", "")
	body = decodificar(t, w)
	if body["vinculadas"].(float64) != 1 {
		t.Errorf("vinculadas: %v", body["vinculadas"])
	}
	if strings.Contains(strings.ToLower(body["message"].(string)), "nenhum") {
		t.Errorf("mensagem de zero com vínculo criado: %v", body["message"])
	}
}

func TestPostDesvincular(t *testing.T) {
	sid := "S1"
	fa := &fakeAdapter{
		execucoes: []model.Execucao{{ID: "E1", NumeroGuia: "60354715", DataExecucao: "2025-03-18", SessaoID: &sid}},
	}
	_, r := novoAmbiente(fa)
	fazer(r, http.MethodGet, "/api/execucoes", "")

	w := fazer(r, http.MethodPost, "/api/execucoes/E1/desvincular", "")
	if w.Code != http.StatusOK {
		t.Fatalf("desvincular: %d (%s)", w.Code, w.Body.String())
	}
	if fa.desvinculos != 1 {
		t.Errorf("desvinculos: %d", fa.desvinculos)
	}

	// não vinculada: rejeição local
	w = fazer(r, http.MethodPost, "/api/execucoes/E1/desvincular", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("segunda desvinculação: %d", w.Code)
	}
}

func TestPostVinculoBatch_RepassaDetalhes(t *testing.T) {
	fa := &fakeAdapter{}
	_, r := novoAmbiente(fa)

	w := fazer(r, http.MethodPost, "/api/vinculacoes/batch", "")
	body := decodificar(t, w)
	if body["message"] != "ok" {
		t.Errorf("mensagem: %v", body["message"])
	}
	detalhes := body["details"].(map[string]interface{})
	if detalhes["total_vinculado_sessao"].(float64) != 2 {
		t.Errorf("detalhes: %v", detalhes)
	}
}

func TestIngestFrontendError(t *testing.T) {
	fa := &fakeAdapter{}
	_, r := novoAmbiente(fa)

	w := fazer(r, http.MethodPost, "/api/errors/frontend", `{"severity":"ERROR","message":"tela quebrou"}`)
	if w.Code != http.StatusAccepted {
		t.Errorf("ingestão: %d", w.Code)
	}
	w = fazer(r, http.MethodPost, "/api/errors/frontend", `{"severity":"INFO","message":"x"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("severity inválida: %d", w.Code)
	}
}
