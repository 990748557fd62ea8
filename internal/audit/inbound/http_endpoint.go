package inbound

import (
	"github.com/shandysiswandi/gotp/internal/audit/usecase"
	"github.com/shandysiswandi/gotp/internal/pkg/router"
)

type HTTPEndpoint struct {
	uc uc
}

// ListEntries returns the caller's factor audit trail.
// @Summary List factor audit entries
// @Description Returns factor audit entries for the authenticated user, newest first.
// @Tags Factor
// @Security BearerAuth
// @Produce json
// @Param limit query int false "Pagination limit"
// @Param offset query int false "Pagination offset"
// @Success 200 {object} router.successResponse{data=AuditEntriesResponse} "Audit entries"
// @Failure 400 {object} router.errorResponse "Invalid query parameters"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/factor/audit [get]
func (h *HTTPEndpoint) ListEntries(r *router.Request) (any, error) {
	limit, err := r.GetQueryInt32("limit")
	if err != nil {
		return nil, err
	}
	offset, err := r.GetQueryInt32("offset")
	if err != nil {
		return nil, err
	}

	items, err := h.uc.ListEntries(r.Context(), usecase.ListEntriesInput{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}

	resp := make([]AuditEntryResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, AuditEntryResponse{
			ID:             item.ID,
			FactorConfigID: item.FactorConfigID,
			Event:          item.Event.String(),
			Data:           item.Data,
			CreatedAt:      item.CreatedAt,
		})
	}

	return AuditEntriesResponse{Entries: resp}, nil
}
