package link

// Estado da seleção. A seleção é uma união etiquetada: os ids presentes são
// exatamente os que o estado permite, nunca flags soltas que possam divergir.
type Estado string

const (
	SemSelecao       Estado = "sem_selecao"
	SessaoAncorada   Estado = "sessao_ancorada"
	ExecucaoAncorada Estado = "execucao_ancorada"
	ParPendente      Estado = "par_pendente"
)

// Tipos de item selecionáveis.
const (
	TipoSessao   = "sessao"
	TipoExecucao = "execucao"
)

// Selecao é valor imutável; toda transição cria uma nova. SessaoID só é
// preenchido em SessaoAncorada/ParPendente, ExecucaoID em
// ExecucaoAncorada/ParPendente.
type Selecao struct {
	Estado     Estado `json:"estado"`
	SessaoID   string `json:"sessao_id,omitempty"`
	ExecucaoID string `json:"execucao_id,omitempty"`
}

func semSelecao() Selecao {
	return Selecao{Estado: SemSelecao}
}

func ancoraSessao(id string) Selecao {
	return Selecao{Estado: SessaoAncorada, SessaoID: id}
}

func ancoraExecucao(id string) Selecao {
	return Selecao{Estado: ExecucaoAncorada, ExecucaoID: id}
}

func parPendente(sessaoID, execucaoID string) Selecao {
	return Selecao{Estado: ParPendente, SessaoID: sessaoID, ExecucaoID: execucaoID}
}

// aoSelecionarSessao aplica a máquina de estados para um clique em sessão.
// Clicar a sessão já ancorada desfaz (toggle); com execução ancorada ou par
// pendente, a sessão clicada vira (ou substitui) o lado sessão do par.
func (s Selecao) aoSelecionarSessao(id string) Selecao {
	switch s.Estado {
	case SemSelecao:
		return ancoraSessao(id)
	case SessaoAncorada:
		if s.SessaoID == id {
			return semSelecao()
		}
		return ancoraSessao(id)
	case ExecucaoAncorada:
		return parPendente(id, s.ExecucaoID)
	case ParPendente:
		if s.SessaoID == id {
			// desmarca o lado sessão; a execução segue ancorada
			return ancoraExecucao(s.ExecucaoID)
		}
		return parPendente(id, s.ExecucaoID)
	}
	return semSelecao()
}

// aoSelecionarExecucao é o simétrico para cliques em execução. O chamador já
// garantiu que a execução não está vinculada.
func (s Selecao) aoSelecionarExecucao(id string) Selecao {
	switch s.Estado {
	case SemSelecao:
		return ancoraExecucao(id)
	case ExecucaoAncorada:
		if s.ExecucaoID == id {
			return semSelecao()
		}
		return ancoraExecucao(id)
	case SessaoAncorada:
		return parPendente(s.SessaoID, id)
	case ParPendente:
		if s.ExecucaoID == id {
			return ancoraSessao(s.SessaoID)
		}
		return parPendente(s.SessaoID, id)
	}
	return semSelecao()
}
