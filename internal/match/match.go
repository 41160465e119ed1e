// Package match calcula as sugestões de vínculo entre sessões e execuções.
// Tudo aqui é puro e síncrono: funções sobre os snapshots em memória, sem
// I/O e sem estado persistido. O controller é quem decide o que fazer com o
// resultado.
package match

import (
	"sync"

	"github.com/faturamento/vinculacao/internal/model"
)

// CandidatasParaSessao devolve os ids das execuções que podem ser vinculadas
// à sessão âncora: mesmo número de guia e ainda não vinculadas. Devolve todas
// as que qualificam — com mais de uma candidata quem decide é o operador,
// nunca o motor.
func CandidatasParaSessao(s *model.Sessao, execucoes []model.Execucao) []string {
	if s == nil || s.NumeroGuia == "" {
		return nil
	}
	var ids []string
	for i := range execucoes {
		e := &execucoes[i]
		if e.NumeroGuia == s.NumeroGuia && !e.Vinculada() {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

// CandidatasParaExecucao devolve os ids das sessões com o mesmo número de
// guia da execução âncora. Uma execução já vinculada não ancora nada:
// conjunto vazio.
func CandidatasParaExecucao(e *model.Execucao, sessoes []model.Sessao) []string {
	if e == nil || e.NumeroGuia == "" || e.Vinculada() {
		return nil
	}
	var ids []string
	for i := range sessoes {
		if sessoes[i].NumeroGuia == e.NumeroGuia {
			ids = append(ids, sessoes[i].ID)
		}
	}
	return ids
}

// PrimeiraExecucaoCompativel acha a primeira execução não vinculada que casa
// com a sessão pela regra estrita do vínculo automático: guia E data E ordem
// compatível. Mais exigente que a sugestão interativa (guia apenas) porque
// este caminho comete sem confirmação humana. usadas marca execuções já
// consumidas na mesma rodada.
func PrimeiraExecucaoCompativel(s *model.Sessao, execucoes []model.Execucao, usadas map[string]bool) *model.Execucao {
	if s == nil {
		return nil
	}
	for i := range execucoes {
		e := &execucoes[i]
		if e.Vinculada() || usadas[e.ID] {
			continue
		}
		if e.NumeroGuia != s.NumeroGuia || e.DataExecucao != s.DataSessao {
			continue
		}
		if !ordemCompativel(s.OrdemExecucao, e.OrdemExecucao) {
			continue
		}
		return e
	}
	return nil
}

// ordemCompativel: ordens iguais (inclusive ambas ausentes), ou a execução
// sem ordem enquanto a sessão tem — o inverso (execução com ordem, sessão
// sem) não casa.
func ordemCompativel(sessao, execucao *int) bool {
	if execucao == nil {
		return true
	}
	return sessao != nil && *sessao == *execucao
}

// Memo guarda o último conjunto de candidatas calculado, chaveado por
// (âncora, versão do snapshot). Evita recomputar a cada GET de seleção sem
// virar estado mutável que possa divergir: qualquer mudança de âncora ou de
// snapshot muda a chave.
type Memo struct {
	mu  sync.Mutex
	key string
	ids []string
}

func (m *Memo) Get(key string, compute func() []string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if key != "" && key == m.key {
		return m.ids
	}
	m.key = key
	m.ids = compute()
	return m.ids
}

// Clear zera o memo (usado quando a seleção é limpa).
func (m *Memo) Clear() {
	m.mu.Lock()
	m.key = ""
	m.ids = nil
	m.mu.Unlock()
}
