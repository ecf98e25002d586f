package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/tbourn/feedback-hub/internal/domain"
)

func TestCreateComment_StatusMapping(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.seedProject(t)

	w := env.do(t, http.MethodPost, "/projects/"+p.ID+"/comments",
		map[string]any{"author": "Ann", "comment": "Love it", "timestamp": "2:30 PM"}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var cm domain.Comment
	if err := json.Unmarshal(w.Body.Bytes(), &cm); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cm.ProjectID != p.ID || cm.Timestamp == nil || *cm.Timestamp != "2:30 PM" {
		t.Fatalf("unexpected comment: %+v", cm)
	}

	// blank timestamp is stored as null
	w = env.do(t, http.MethodPost, "/projects/"+p.ID+"/comments",
		map[string]any{"author": "Bo", "comment": "Too slow", "timestamp": "  "}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	cm = domain.Comment{}
	_ = json.Unmarshal(w.Body.Bytes(), &cm)
	if cm.Timestamp != nil {
		t.Fatalf("expected null timestamp, got %q", *cm.Timestamp)
	}

	w = env.do(t, http.MethodPost, "/projects/"+p.ID+"/comments", map[string]any{"author": "", "comment": "x"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing author: expected 400, got %d", w.Code)
	}
	w = env.do(t, http.MethodPost, "/projects/"+p.ID+"/comments", "[]", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid JSON: expected 400, got %d", w.Code)
	}
	w = env.do(t, http.MethodPost, "/projects/nope/comments", map[string]any{"author": "A", "comment": "x"}, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown project: expected 404, got %d", w.Code)
	}
}

func TestListComments_NewestFirst(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.seedProject(t)
	env.seedComment(t, p.ID, "Ann", "first", nil)
	env.seedComment(t, p.ID, "Bo", "second", nil)

	w := env.do(t, http.MethodGet, "/projects/"+p.ID+"/comments", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp ListCommentsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Comments) != 2 || resp.Comments[0].Comment != "second" {
		t.Fatalf("expected newest first, got %+v", resp.Comments)
	}

	if w := env.do(t, http.MethodGet, "/projects/nope/comments", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown project: expected 404, got %d", w.Code)
	}
}
