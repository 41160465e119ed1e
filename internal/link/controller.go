// Package link é o dono do fluxo de vinculação: guarda os snapshots de
// sessões e execuções, a seleção do operador e executa as operações de
// vincular/desvincular contra o backend de faturamento.
//
// Há um workspace de conciliação por processo (um operador por vez, como na
// tela original). Multi-operador exigiria um workspace por usuário do token;
// fora de escopo por ora.
package link

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/faturamento/vinculacao/internal/logger"
	"github.com/faturamento/vinculacao/internal/match"
	"github.com/faturamento/vinculacao/internal/model"
	"github.com/faturamento/vinculacao/internal/upstream"
)

var (
	ErrTipoInvalido         = errors.New("tipo de item inválido (use sessao ou execucao)")
	ErrItemNaoEncontrado    = errors.New("item não encontrado no snapshot atual")
	ErrExecucaoJaVinculada  = errors.New("execução já vinculada; desvincule antes de criar novo vínculo")
	ErrExecucaoNaoVinculada = errors.New("execução não está vinculada")
	ErrSelecaoIncompleta    = errors.New("selecione uma sessão e uma execução antes de confirmar")
	ErrOperacaoEmAndamento  = errors.New("já existe operação em andamento para esta execução")
)

// ResultadoAuto reporta o vínculo automático local: quantos pares foram
// efetivados versus quantos foram tentados. Zero vínculos é desfecho normal.
type ResultadoAuto struct {
	Vinculadas int `json:"vinculadas"`
	Tentativas int `json:"tentativas"`
}

// Controller serializa todo acesso ao estado compartilhado (snapshots +
// seleção). As chamadas de rede acontecem fora do lock; o resultado só é
// aplicado se ainda for o fetch mais recente daquela coleção.
type Controller struct {
	adapter upstream.Adapter
	log     *logger.Logger

	mu sync.Mutex

	sessoes      []model.Sessao
	totalSessoes int
	// versão do snapshot, para a chave do memo de sugestões
	versaoSessoes uint64
	// geração do último fetch emitido, para descarte de resposta velha
	geracaoSessoes uint64
	filtroSessoes  model.FiltroSessoes

	execucoes        []model.Execucao
	totalExecucoes   int
	versaoExecucoes  uint64
	geracaoExecucoes uint64
	filtroExecucoes  model.FiltroExecucoes

	selecao Selecao
	memo    match.Memo

	// execuções com vincular/desvincular em voo; ids distintos podem
	// prosseguir em paralelo
	emVoo map[string]bool
}

func NewController(adapter upstream.Adapter, log *logger.Logger) *Controller {
	return &Controller{
		adapter: adapter,
		log:     log,
		selecao: semSelecao(),
		emVoo:   make(map[string]bool),
	}
}

// AtualizarSessoes busca sessões com os filtros dados e, se este ainda for o
// fetch mais recente da coleção, aplica o resultado ao snapshot. Em caso de
// erro o snapshot anterior permanece intocado. A página retornada é sempre a
// da própria chamada, aplicada ou não.
func (c *Controller) AtualizarSessoes(ctx context.Context, f model.FiltroSessoes) (*upstream.PaginaSessoes, error) {
	c.mu.Lock()
	c.geracaoSessoes++
	g := c.geracaoSessoes
	c.mu.Unlock()

	pagina, err := c.adapter.FetchSessoes(ctx, f)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if g != c.geracaoSessoes {
		// outro fetch foi emitido enquanto este estava em voo; o último vence
		c.log.Debug().Uint64("geracao", g).Msg("fetch de sessões superado, resultado descartado")
		return pagina, nil
	}
	c.sessoes = pagina.Itens
	c.totalSessoes = pagina.Total
	c.versaoSessoes++
	c.filtroSessoes = f
	return pagina, nil
}

// AtualizarExecucoes é o análogo para execuções. Os dois fetches são
// independentes: nenhum bloqueia o outro.
func (c *Controller) AtualizarExecucoes(ctx context.Context, f model.FiltroExecucoes) (*upstream.PaginaExecucoes, error) {
	c.mu.Lock()
	c.geracaoExecucoes++
	g := c.geracaoExecucoes
	c.mu.Unlock()

	pagina, err := c.adapter.FetchExecucoes(ctx, f)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if g != c.geracaoExecucoes {
		c.log.Debug().Uint64("geracao", g).Msg("fetch de execuções superado, resultado descartado")
		return pagina, nil
	}
	c.execucoes = pagina.Itens
	c.totalExecucoes = pagina.Total
	c.versaoExecucoes++
	c.filtroExecucoes = f
	return pagina, nil
}

// Sessoes devolve uma cópia do snapshot atual.
func (c *Controller) Sessoes() ([]model.Sessao, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Sessao, len(c.sessoes))
	copy(out, c.sessoes)
	return out, c.totalSessoes
}

func (c *Controller) Execucoes() ([]model.Execucao, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Execucao, len(c.execucoes))
	copy(out, c.execucoes)
	return out, c.totalExecucoes
}

// SelecionarItem aplica a máquina de estados da seleção. Validações locais
// (item inexistente, execução já vinculada como âncora) rejeitam antes de
// qualquer rede; o estado não muda em caso de erro.
func (c *Controller) SelecionarItem(tipo, id string) (Selecao, []string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch tipo {
	case TipoSessao:
		if c.buscarSessao(id) == nil {
			return c.selecao, c.candidatasLocked(), ErrItemNaoEncontrado
		}
		c.selecao = c.selecao.aoSelecionarSessao(id)
	case TipoExecucao:
		e := c.buscarExecucao(id)
		if e == nil {
			return c.selecao, c.candidatasLocked(), ErrItemNaoEncontrado
		}
		if e.Vinculada() {
			// execução vinculada não ancora novo vínculo; só a ação dedicada
			// de desvincular pode tocá-la
			return c.selecao, c.candidatasLocked(), ErrExecucaoJaVinculada
		}
		c.selecao = c.selecao.aoSelecionarExecucao(id)
	default:
		return c.selecao, c.candidatasLocked(), ErrTipoInvalido
	}
	return c.selecao, c.candidatasLocked(), nil
}

// LimparSelecao volta para SemSelecao e zera as candidatas.
func (c *Controller) LimparSelecao() Selecao {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selecao = semSelecao()
	c.memo.Clear()
	return c.selecao
}

// Selecao devolve o estado atual e as candidatas destacadas.
func (c *Controller) Selecao() (Selecao, []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selecao, c.candidatasLocked()
}

// candidatasLocked recalcula as sugestões para a âncora atual, memoizado por
// (âncora, versão dos snapshots). Chamar com c.mu preso.
func (c *Controller) candidatasLocked() []string {
	sel := c.selecao
	switch sel.Estado {
	case SessaoAncorada:
		key := fmt.Sprintf("s:%s:%d:%d", sel.SessaoID, c.versaoSessoes, c.versaoExecucoes)
		return c.memo.Get(key, func() []string {
			return match.CandidatasParaSessao(c.buscarSessao(sel.SessaoID), c.execucoes)
		})
	case ExecucaoAncorada:
		key := fmt.Sprintf("e:%s:%d:%d", sel.ExecucaoID, c.versaoSessoes, c.versaoExecucoes)
		return c.memo.Get(key, func() []string {
			return match.CandidatasParaExecucao(c.buscarExecucao(sel.ExecucaoID), c.sessoes)
		})
	default:
		// sem âncora (ou par já formado): nada destacado
		return nil
	}
}

// ConfirmarVinculo envia o par confirmado ao backend. Pré-condições locais
// falham sem rede; falha remota preserva a seleção para o operador tentar de
// novo ou cancelar. Sucesso limpa a seleção e recarrega as duas coleções.
func (c *Controller) ConfirmarVinculo(ctx context.Context, sessaoID, execucaoID string) error {
	if sessaoID == "" || execucaoID == "" {
		return ErrSelecaoIncompleta
	}

	c.mu.Lock()
	e := c.buscarExecucao(execucaoID)
	if e == nil {
		c.mu.Unlock()
		return ErrItemNaoEncontrado
	}
	if e.Vinculada() {
		c.mu.Unlock()
		return ErrExecucaoJaVinculada
	}
	if err := c.reservarLocked(execucaoID); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()
	defer c.liberar(execucaoID)

	if err := c.adapter.VincularManual(ctx, sessaoID, execucaoID); err != nil {
		c.log.Warn().Err(err).Str("sessao_id", sessaoID).Str("execucao_id", execucaoID).Msg("vínculo manual falhou")
		return err
	}
	c.log.Info().Str("sessao_id", sessaoID).Str("execucao_id", execucaoID).Msg("vínculo manual confirmado")

	c.LimparSelecao()
	c.recarregar(ctx)
	return nil
}

// Desvincular desfaz o vínculo de uma execução. O código de ficha provisório
// (TEMP_...) é calculado aqui e enviado junto: o formato é contrato com a
// exibição de fichas e precisa ser determinístico.
func (c *Controller) Desvincular(ctx context.Context, execucaoID string) error {
	if execucaoID == "" {
		return ErrSelecaoIncompleta
	}

	c.mu.Lock()
	e := c.buscarExecucao(execucaoID)
	if e == nil {
		c.mu.Unlock()
		return ErrItemNaoEncontrado
	}
	if !e.Vinculada() {
		c.mu.Unlock()
		return ErrExecucaoNaoVinculada
	}
	codigoTemp := model.CodigoFichaTemporario(e.NumeroGuia, e.DataExecucao, e.OrdemExecucao)
	if err := c.reservarLocked(execucaoID); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()
	defer c.liberar(execucaoID)

	if err := c.adapter.Desvincular(ctx, execucaoID, codigoTemp); err != nil {
		c.log.Warn().Err(err).Str("execucao_id", execucaoID).Msg("desvincular falhou")
		return err
	}
	c.log.Info().Str("execucao_id", execucaoID).Str("codigo_ficha", codigoTemp).Msg("execução desvinculada")

	c.LimparSelecao()
	c.recarregar(ctx)
	return nil
}

// VincularAutomatico percorre as sessões sem vínculo do snapshot e vincula
// cada uma à primeira execução compatível pela regra estrita (guia + data +
// ordem). Melhor esforço local: cada par falho é contado e pulado, nunca
// interrompe a rodada. O resultado diz quantos vínculos foram efetivados
// versus tentados.
func (c *Controller) VincularAutomatico(ctx context.Context) (ResultadoAuto, error) {
	type par struct {
		sessaoID   string
		execucaoID string
	}

	c.mu.Lock()
	vinculadas := make(map[string]bool, len(c.execucoes))
	for i := range c.execucoes {
		if c.execucoes[i].Vinculada() {
			vinculadas[*c.execucoes[i].SessaoID] = true
		}
	}
	usadas := make(map[string]bool)
	var pares []par
	for i := range c.sessoes {
		s := &c.sessoes[i]
		if vinculadas[s.ID] {
			continue
		}
		if e := match.PrimeiraExecucaoCompativel(s, c.execucoes, usadas); e != nil {
			usadas[e.ID] = true
			pares = append(pares, par{sessaoID: s.ID, execucaoID: e.ID})
		}
	}
	c.mu.Unlock()

	res := ResultadoAuto{Tentativas: len(pares)}
	for _, p := range pares {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := c.adapter.VincularManual(ctx, p.sessaoID, p.execucaoID); err != nil {
			c.log.Warn().Err(err).Str("sessao_id", p.sessaoID).Str("execucao_id", p.execucaoID).Msg("vínculo automático falhou para o par")
			continue
		}
		res.Vinculadas++
	}
	c.log.Info().Int("vinculadas", res.Vinculadas).Int("tentativas", res.Tentativas).Msg("vínculo automático concluído")

	if res.Vinculadas > 0 {
		c.LimparSelecao()
	}
	c.recarregar(ctx)
	return res, nil
}

// VincularBatch dispara o job de vinculação em lote do backend e repassa os
// contadores exatamente como recebidos — nada é recalculado aqui.
func (c *Controller) VincularBatch(ctx context.Context) (*model.ResultadoBatch, string, error) {
	detalhes, mensagem, err := c.adapter.VincularBatch(ctx)
	if err != nil {
		return nil, "", err
	}
	c.log.Info().Str("mensagem", mensagem).Msg("batch de vinculação disparado")
	c.LimparSelecao()
	c.recarregar(ctx)
	return detalhes, mensagem, nil
}

// recarregar refaz as duas coleções com os últimos filtros usados. Pós
// mutação sempre recarrega em vez de remendar o snapshot local: o backend
// pode propagar efeitos (fichas relacionadas) que o cliente não prevê.
// Falha de recarga só é logada; a mutação em si já foi confirmada.
func (c *Controller) recarregar(ctx context.Context) {
	c.mu.Lock()
	fs := c.filtroSessoes
	fe := c.filtroExecucoes
	c.mu.Unlock()

	if _, err := c.AtualizarSessoes(ctx, fs); err != nil {
		c.log.Warn().Err(err).Msg("recarga de sessões falhou")
	}
	if _, err := c.AtualizarExecucoes(ctx, fe); err != nil {
		c.log.Warn().Err(err).Msg("recarga de execuções falhou")
	}
}

func (c *Controller) reservarLocked(execucaoID string) error {
	if c.emVoo[execucaoID] {
		return ErrOperacaoEmAndamento
	}
	c.emVoo[execucaoID] = true
	return nil
}

func (c *Controller) liberar(execucaoID string) {
	c.mu.Lock()
	delete(c.emVoo, execucaoID)
	c.mu.Unlock()
}

func (c *Controller) buscarSessao(id string) *model.Sessao {
	for i := range c.sessoes {
		if c.sessoes[i].ID == id {
			return &c.sessoes[i]
		}
	}
	return nil
}

func (c *Controller) buscarExecucao(id string) *model.Execucao {
	for i := range c.execucoes {
		if c.execucoes[i].ID == id {
			return &c.execucoes[i]
		}
	}
	return nil
}
