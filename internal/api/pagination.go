package api

import (
	"net/http"
	"strconv"
)

const defaultLimit = 50
const maxLimit = 200

// ParseLimit lê o limit da query. O backend pagina; aqui só limitamos o
// tamanho pedido. Default 50, máximo 200.
func ParseLimit(r *http.Request) int {
	limit := defaultLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
			if limit > maxLimit {
				limit = maxLimit
			}
		}
	}
	return limit
}
