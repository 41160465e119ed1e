package link

import "testing"

func TestSelecao_AncoraEToggleSessao(t *testing.T) {
	s := semSelecao()

	s = s.aoSelecionarSessao("S1")
	if s.Estado != SessaoAncorada || s.SessaoID != "S1" || s.ExecucaoID != "" {
		t.Fatalf("ancorar: got %+v", s)
	}

	// clicar outra sessão troca a âncora
	s = s.aoSelecionarSessao("S2")
	if s.Estado != SessaoAncorada || s.SessaoID != "S2" {
		t.Fatalf("trocar âncora: got %+v", s)
	}

	// clicar a mesma sessão desfaz
	s = s.aoSelecionarSessao("S2")
	if s.Estado != SemSelecao || s.SessaoID != "" {
		t.Fatalf("toggle: got %+v", s)
	}
}

func TestSelecao_ParPendente(t *testing.T) {
	s := semSelecao().aoSelecionarSessao("S1").aoSelecionarExecucao("E1")
	if s.Estado != ParPendente || s.SessaoID != "S1" || s.ExecucaoID != "E1" {
		t.Fatalf("par: got %+v", s)
	}

	// trocar a execução do par
	s = s.aoSelecionarExecucao("E2")
	if s.Estado != ParPendente || s.ExecucaoID != "E2" {
		t.Fatalf("trocar execução: got %+v", s)
	}

	// clicar a execução do par desmarca só esse lado
	s = s.aoSelecionarExecucao("E2")
	if s.Estado != SessaoAncorada || s.SessaoID != "S1" || s.ExecucaoID != "" {
		t.Fatalf("desmarcar execução: got %+v", s)
	}
}

func TestSelecao_SimetricoExecucao(t *testing.T) {
	s := semSelecao().aoSelecionarExecucao("E1")
	if s.Estado != ExecucaoAncorada || s.ExecucaoID != "E1" {
		t.Fatalf("ancorar execução: got %+v", s)
	}
	s = s.aoSelecionarSessao("S1")
	if s.Estado != ParPendente || s.SessaoID != "S1" || s.ExecucaoID != "E1" {
		t.Fatalf("par a partir de execução: got %+v", s)
	}
	s = s.aoSelecionarSessao("S1")
	if s.Estado != ExecucaoAncorada || s.ExecucaoID != "E1" || s.SessaoID != "" {
		t.Fatalf("desmarcar sessão: got %+v", s)
	}
	s = s.aoSelecionarExecucao("E1")
	if s.Estado != SemSelecao {
		t.Fatalf("toggle final: got %+v", s)
	}
}
