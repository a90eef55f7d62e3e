package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/glowhaus/storefront-backend/internal/assistant"
)

type stubDialogue struct {
	turn assistant.Turn
}

func (s *stubDialogue) Step(ctx context.Context, turn assistant.Turn) (*assistant.Reply, error) {
	s.turn = turn
	return &assistant.Reply{State: assistant.StateQuiz, Step: assistant.StepConcern, SkinType: turn.Value, Messages: []string{"ok"}}, nil
}

func TestAssistantTurnCarriesIdentity(t *testing.T) {
	engine := &stubDialogue{}
	userID := uuid.New()
	body := `{"state":"quiz","step":"skin_type","action":"answer","value":"  oily  "}`
	resp := httptest.NewRecorder()
	AssistantTurn(engine, nil).ServeHTTP(resp, asUser(newRequest(http.MethodPost, "/api/v1/assistant/turn", body), userID))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if engine.turn.SessionID != testSession {
		t.Fatalf("expected session on turn, got %q", engine.turn.SessionID)
	}
	if engine.turn.UserID == nil || *engine.turn.UserID != userID {
		t.Fatalf("expected user on turn, got %v", engine.turn.UserID)
	}
	if engine.turn.Value != "oily" {
		t.Fatalf("expected trimmed value, got %q", engine.turn.Value)
	}
	var reply assistant.Reply
	decodeData(t, resp, &reply)
	if reply.State != assistant.StateQuiz || reply.Step != assistant.StepConcern || reply.SkinType != "oily" {
		t.Fatalf("unexpected reply %+v", reply)
	}
}

func TestAssistantTurnTruncatesText(t *testing.T) {
	engine := &stubDialogue{}
	body := `{"state":"idle","action":"text","text":"` + strings.Repeat("a", 900) + `"}`
	AssistantTurn(engine, nil).ServeHTTP(httptest.NewRecorder(), newRequest(http.MethodPost, "/api/v1/assistant/turn", body))
	if len(engine.turn.Text) != maxTurnText {
		t.Fatalf("expected text capped at %d, got %d", maxTurnText, len(engine.turn.Text))
	}
}

func TestAssistantTurnRejectsClientIdentity(t *testing.T) {
	resp := httptest.NewRecorder()
	body := `{"state":"idle","action":"menu","sessionId":"spoofed"}`
	AssistantTurn(&stubDialogue{}, nil).ServeHTTP(resp, newRequest(http.MethodPost, "/api/v1/assistant/turn", body))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
