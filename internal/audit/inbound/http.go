package inbound

import "github.com/shandysiswandi/gotp/internal/pkg/router"

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	r.GET("/api/v1/factor/audit", end.ListEntries)
}
