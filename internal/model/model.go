package model

import (
	"fmt"
	"strings"
)

// Sessao é o registro clínico de atendimento (lado ficha). Criada pelo fluxo
// de processamento de fichas; aqui é somente leitura — o vínculo com a
// execução é atualizado pelo backend de faturamento como efeito da vinculação.
type Sessao struct {
	ID                     string `json:"id"`
	NumeroGuia             string `json:"numero_guia"`
	DataSessao             string `json:"data_sessao"` // YYYY-MM-DD
	OrdemExecucao          *int   `json:"ordem_execucao,omitempty"`
	CodigoFicha            string `json:"codigo_ficha"`
	AssinaturaPaciente     bool   `json:"assinatura_paciente"`
	AssinaturaProfissional bool   `json:"assinatura_profissional"`
}

// Execucao é o registro de atendimento do lado da operadora (capturado/importado).
// SessaoID nulo significa não vinculada. LinkManualNecessario é calculado pelo
// backend quando a vinculação automática foi inconclusiva.
type Execucao struct {
	ID                   string  `json:"id"`
	NumeroGuia           string  `json:"numero_guia"`
	DataExecucao         string  `json:"data_execucao"` // YYYY-MM-DD
	OrdemExecucao        *int    `json:"ordem_execucao,omitempty"`
	CodigoFicha          string  `json:"codigo_ficha"`
	PacienteNome         string  `json:"paciente_nome"`
	SessaoID             *string `json:"sessao_id"`
	LinkManualNecessario bool    `json:"link_manual_necessario"`
}

// Vinculada informa se a execução já está vinculada a uma sessão.
func (e *Execucao) Vinculada() bool {
	return e.SessaoID != nil && *e.SessaoID != ""
}

// Status de vinculação aceitos no filtro de execuções.
const (
	StatusVinculada    = "vinculada"
	StatusNaoVinculada = "nao_vinculada"
	StatusTodas        = "todas"
)

// FiltroSessoes são os filtros do GET /sessoes. Search casa número da guia ou
// código da ficha; datas no formato YYYY-MM-DD.
type FiltroSessoes struct {
	Search     string
	DataInicio string
	DataFim    string
	Limit      int
}

// FiltroExecucoes são os filtros do GET /execucoes. Search casa guia, código
// da ficha ou nome do paciente (substring, sem diferenciar maiúsculas).
// LinkManualNecessario é tri-state: nil = qualquer.
type FiltroExecucoes struct {
	Search               string
	LinkManualNecessario *bool
	StatusVinculacao     string // vinculada | nao_vinculada | todas
	DataInicio           string
	DataFim              string
	OrderColumn          string
	OrderDirection       string
	Limit                int
}

// ResultadoBatch são os contadores agregados do job de vinculação em lote do
// backend. Exibidos exatamente como recebidos — o cliente não recalcula nada.
type ResultadoBatch struct {
	TotalVinculadoSessao           int `json:"total_vinculado_sessao"`
	TotalVinculadoExecucao         int `json:"total_vinculado_execucao"`
	SessoesVinculadasDireto        int `json:"sessoes_vinculadas_direto"`
	ExecucoesVinculadasDireto      int `json:"execucoes_vinculadas_direto"`
	ExecucoesAtualizadasPropagacao int `json:"execucoes_atualizadas_por_propagacao"`
	SessoesAtualizadasPropagacao   int `json:"sessoes_atualizadas_por_propagacao"`
}

// CodigoFichaTemporario monta o código de ficha provisório restaurado após a
// desvinculação: TEMP_{numero_guia}_{data sem separadores}_{ordem ?? 1}.
// O formato é contrato com o restante do sistema (exibição de código de
// ficha); não alterar.
func CodigoFichaTemporario(numeroGuia, dataExecucao string, ordem *int) string {
	n := 1
	if ordem != nil {
		n = *ordem
	}
	return fmt.Sprintf("TEMP_%s_%s_%d", numeroGuia, somenteDigitos(dataExecucao), n)
}

func somenteDigitos(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
