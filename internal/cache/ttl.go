package cache

import (
	"strings"
	"sync"
	"time"
)

// TTL é um cache em memória com expiração, usado pelas listagens de sessões
// e execuções (chave = query completa, valor = JSON já serializado).
type TTL struct {
	mu    sync.RWMutex
	items map[string]item
	ttl   time.Duration
}

type item struct {
	data []byte
	exp  time.Time
}

// New cria o cache com a duração dada e dispara a limpeza periódica.
// ttl <= 0 devolve um cache desligado (Get sempre nil, Set no-op).
func New(ttl time.Duration) *TTL {
	c := &TTL{ttl: ttl}
	if ttl > 0 {
		c.items = make(map[string]item)
		go c.cleanup()
	}
	return c
}

func (c *TTL) cleanup() {
	tick := time.NewTicker(c.ttl / 2)
	defer tick.Stop()
	for range tick.C {
		c.mu.Lock()
		now := time.Now()
		for k, v := range c.items {
			if v.exp.Before(now) {
				delete(c.items, k)
			}
		}
		c.mu.Unlock()
	}
}

// Get devolve o valor se presente e não expirado; senão nil.
func (c *TTL) Get(key string) []byte {
	if c.items == nil {
		return nil
	}
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()
	if !ok || it.exp.Before(time.Now()) {
		return nil
	}
	return it.data
}

// Set guarda o valor com o TTL do cache.
func (c *TTL) Set(key string, value []byte) {
	if c.items == nil {
		return
	}
	exp := time.Now().Add(c.ttl)
	c.mu.Lock()
	c.items[key] = item{data: value, exp: exp}
	c.mu.Unlock()
}

// DeletePrefix remove todas as chaves com o prefixo dado. Usado para
// invalidar as listagens ("sessoes:", "execucoes:") após vincular/desvincular.
func (c *TTL) DeletePrefix(prefix string) {
	if c.items == nil {
		return
	}
	c.mu.Lock()
	for k := range c.items {
		if strings.HasPrefix(k, prefix) {
			delete(c.items, k)
		}
	}
	c.mu.Unlock()
}
