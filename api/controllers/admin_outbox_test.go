package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/glowhaus/storefront-backend/pkg/enums"
	pkgerrors "github.com/glowhaus/storefront-backend/pkg/errors"
	"github.com/glowhaus/storefront-backend/pkg/outbox"
)

type stubDeadLetters struct {
	entries    []outbox.DLQEntry
	err        error
	lastFilter outbox.DLQFilter
	lastID     uuid.UUID
	lastForce  bool
}

func (s *stubDeadLetters) List(_ context.Context, filter outbox.DLQFilter) ([]outbox.DLQEntry, error) {
	s.lastFilter = filter
	return s.entries, s.err
}

func (s *stubDeadLetters) Replay(_ context.Context, eventID uuid.UUID, force bool) error {
	s.lastID = eventID
	s.lastForce = force
	return s.err
}

func TestAdminDLQListPassesFilter(t *testing.T) {
	svc := &stubDeadLetters{entries: []outbox.DLQEntry{{EventID: uuid.New(), Reason: enums.OutboxDLQReasonMaxAttempts}}}
	resp := httptest.NewRecorder()
	AdminDLQList(svc, nil).ServeHTTP(resp, newRequest(http.MethodGet, "/api/v1/admin/outbox/dlq?reason=MAX_ATTEMPTS&limit=5", ""))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.lastFilter.Reason != enums.OutboxDLQReasonMaxAttempts || svc.lastFilter.Limit != 5 {
		t.Fatalf("unexpected filter %+v", svc.lastFilter)
	}
	var entries []outbox.DLQEntry
	decodeData(t, resp, &entries)
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
}

func TestAdminDLQListRejectsUnknownReason(t *testing.T) {
	resp := httptest.NewRecorder()
	AdminDLQList(&stubDeadLetters{}, nil).ServeHTTP(resp, newRequest(http.MethodGet, "/api/v1/admin/outbox/dlq?reason=bored", ""))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAdminDLQReplay(t *testing.T) {
	eventID := uuid.New()
	svc := &stubDeadLetters{}
	req := withURLParams(newRequest(http.MethodPost, "/replay", `{"force":true}`), map[string]string{"eventID": eventID.String()})
	resp := httptest.NewRecorder()
	AdminDLQReplay(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.lastID != eventID || !svc.lastForce {
		t.Fatalf("unexpected replay call id=%s force=%v", svc.lastID, svc.lastForce)
	}
}

func TestAdminDLQReplayWithoutBodyIsUnforced(t *testing.T) {
	svc := &stubDeadLetters{}
	req := withURLParams(newRequest(http.MethodPost, "/replay", ""), map[string]string{"eventID": uuid.NewString()})
	resp := httptest.NewRecorder()
	AdminDLQReplay(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK || svc.lastForce {
		t.Fatalf("expected unforced replay, got %d force=%v", resp.Code, svc.lastForce)
	}
}

func TestAdminDLQReplayMapsServiceErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{pkgerrors.New(pkgerrors.CodeNotFound, "dead letter not found"), http.StatusNotFound},
		{pkgerrors.New(pkgerrors.CodeStateConflict, "replay requires force"), http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		req := withURLParams(newRequest(http.MethodPost, "/replay", ""), map[string]string{"eventID": uuid.NewString()})
		resp := httptest.NewRecorder()
		AdminDLQReplay(&stubDeadLetters{err: tc.err}, nil).ServeHTTP(resp, req)
		if resp.Code != tc.status {
			t.Fatalf("expected %d got %d", tc.status, resp.Code)
		}
	}

	req := withURLParams(newRequest(http.MethodPost, "/replay", ""), map[string]string{"eventID": "nope"})
	resp := httptest.NewRecorder()
	AdminDLQReplay(&stubDeadLetters{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", resp.Code)
	}
}
