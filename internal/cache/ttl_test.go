package cache

import (
	"testing"
	"time"
)

func TestTTL_SetGetDeletePrefix(t *testing.T) {
	c := New(time.Minute)
	c.Set("sessoes:a", []byte("1"))
	c.Set("sessoes:b", []byte("2"))
	c.Set("execucoes:a", []byte("3"))

	if got := c.Get("sessoes:a"); string(got) != "1" {
		t.Errorf("get: %q", got)
	}
	c.DeletePrefix("sessoes:")
	if c.Get("sessoes:a") != nil || c.Get("sessoes:b") != nil {
		t.Error("prefixo não removido")
	}
	if c.Get("execucoes:a") == nil {
		t.Error("outro prefixo removido indevidamente")
	}
}

func TestTTL_Desligado(t *testing.T) {
	c := New(0)
	c.Set("k", []byte("v"))
	if c.Get("k") != nil {
		t.Error("cache desligado não deveria guardar nada")
	}
}

func TestTTL_Expira(t *testing.T) {
	c := New(10 * time.Millisecond)
	c.Set("k", []byte("v"))
	time.Sleep(30 * time.Millisecond)
	if c.Get("k") != nil {
		t.Error("entrada não expirou")
	}
}
