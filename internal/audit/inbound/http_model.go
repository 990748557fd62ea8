package inbound

import (
	"time"

	"github.com/shandysiswandi/gotp/internal/pkg/valueobject"
)

type AuditEntryResponse struct {
	ID             int64               `json:"id"`
	FactorConfigID int64               `json:"factor_config_id"`
	Event          string              `json:"event"`
	Data           valueobject.JSONMap `json:"data" swaggertype:"object"`
	CreatedAt      time.Time           `json:"created_at"`
}

type AuditEntriesResponse struct {
	Entries []AuditEntryResponse `json:"entries"`
}
