package inbound

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shandysiswandi/gotp/internal/audit/entity"
	"github.com/shandysiswandi/gotp/internal/audit/usecase"
	"github.com/shandysiswandi/gotp/internal/pkg/goerror"
	"github.com/shandysiswandi/gotp/internal/pkg/router"
	"github.com/shandysiswandi/gotp/internal/pkg/valueobject"
)

type stubListUsecase struct {
	recordingUsecase
	in    usecase.ListEntriesInput
	items []entity.AuditEntry
	err   error
}

func (s *stubListUsecase) ListEntries(_ context.Context, in usecase.ListEntriesInput) ([]entity.AuditEntry, error) {
	s.in = in
	return s.items, s.err
}

func TestHTTPEndpoint_ListEntries(t *testing.T) {
	created := time.Unix(30000, 0).UTC()
	stub := &stubListUsecase{items: []entity.AuditEntry{{
		ID:             9,
		UserID:         42,
		FactorConfigID: 7,
		Event:          entity.EventFactorChallengeAnswered,
		Data:           valueobject.JSONMap{"workflow_key": "signin"},
		CreatedAt:      created,
	}}}
	end := &HTTPEndpoint{uc: stub}

	req := &router.Request{Request: httptest.NewRequest("GET", "/api/v1/factor/audit?limit=5&offset=10", nil)}
	out, err := end.ListEntries(req)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if stub.in.Limit != 5 || stub.in.Offset != 10 {
		t.Fatalf("pagination not forwarded: %+v", stub.in)
	}

	resp, ok := out.(AuditEntriesResponse)
	if !ok || len(resp.Entries) != 1 {
		t.Fatalf("unexpected response %#v", out)
	}
	got := resp.Entries[0]
	if got.ID != 9 || got.Event != "factor.challenge.answered" || got.FactorConfigID != 7 || !got.CreatedAt.Equal(created) {
		t.Fatalf("unexpected entry %+v", got)
	}
}

func TestHTTPEndpoint_ListEntries_BadQuery(t *testing.T) {
	end := &HTTPEndpoint{uc: &stubListUsecase{}}

	req := &router.Request{Request: httptest.NewRequest("GET", "/api/v1/factor/audit?limit=abc", nil)}
	_, err := end.ListEntries(req)
	if goerror.CodeOf(err) != goerror.CodeInvalidFormat {
		t.Fatalf("got %v, want invalid format", err)
	}
}

func TestHTTPEndpoint_ListEntries_Empty(t *testing.T) {
	end := &HTTPEndpoint{uc: &stubListUsecase{}}

	out, err := end.ListEntries(&router.Request{Request: httptest.NewRequest("GET", "/api/v1/factor/audit", nil)})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if resp := out.(AuditEntriesResponse); resp.Entries == nil || len(resp.Entries) != 0 {
		t.Fatalf("empty list must encode as [], got %#v", resp.Entries)
	}
}
