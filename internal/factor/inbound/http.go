package inbound

import "github.com/shandysiswandi/gotp/internal/pkg/router"

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	r.GET("/api/v1/factor", end.ListFactors)

	r.POST("/api/v1/factor/totp/enrollment", end.BeginEnrollment)
	r.POST("/api/v1/factor/totp/enrollment/confirm", end.ConfirmEnrollment)

	r.POST("/api/v1/factor/challenges/:id", end.IssueChallenges)
	r.POST("/api/v1/factor/challenges/:id/validate", end.ValidateResponse)
}
