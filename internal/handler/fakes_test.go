package handler

import (
	"context"
	"errors"
	"sync"
	"time"

	"fortec-chat-go/internal/config"
	"fortec-chat-go/internal/model"
	"fortec-chat-go/internal/service"

	"github.com/gin-gonic/gin"
)

var testIdentityCfg = config.IdentityConfig{CookieName: "userEmail", CookieMaxAge: time.Hour}

var fixedTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubCompletion struct {
	mu     sync.Mutex
	emails []string
	turns  [][]model.Turn
	err    error
}

func (s *stubCompletion) Complete(_ context.Context, email string, turns []model.Turn, modelID string) (*model.CompletionReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emails = append(s.emails, email)
	s.turns = append(s.turns, turns)
	if s.err != nil {
		return nil, s.err
	}
	if len(turns) == 0 {
		return nil, service.ErrInvalidMessages
	}
	if modelID == "" {
		modelID = model.DefaultModelID
	}
	return &model.CompletionReply{Text: "echo: " + turns[len(turns)-1].Content, Model: modelID, Timestamp: fixedTime}, nil
}

func (s *stubCompletion) calls() ([]string, [][]model.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.emails...), append([][]model.Turn{}, s.turns...)
}

type stubSearch struct {
	mu      sync.Mutex
	queries []string
	outcome *model.SearchOutcome
}

func (s *stubSearch) Search(_ context.Context, _ string, query string) *model.SearchOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	if s.outcome != nil {
		return s.outcome
	}
	return &model.SearchOutcome{
		Results:  []model.SearchResult{{Title: "T", Link: "https://example.com", Snippet: "S", Position: 1, Source: "example.com"}},
		Metadata: model.SearchMetadata{Status: "Success", ProcessedAt: fixedTime},
	}
}

func (s *stubSearch) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.queries...)
}

type stubDashboard struct {
	emails []string
	forced []bool
}

func (s *stubDashboard) Snapshot(_ context.Context, email string, force bool) *model.DashboardView {
	s.emails = append(s.emails, email)
	s.forced = append(s.forced, force)
	return &model.DashboardView{User: model.DashboardUser{Email: email}, ModelUsage: []model.ModelUsageRow{}}
}

// memoryTranscripts 是内存版的会话归档。
type memoryTranscripts struct {
	mu    sync.Mutex
	saved map[string][]model.Message
	saves int
}

func newMemoryTranscripts() *memoryTranscripts {
	return &memoryTranscripts{saved: make(map[string][]model.Message)}
}

func (m *memoryTranscripts) Save(_ context.Context, uid, sessionID string, messages []model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[uid+"/"+sessionID] = append([]model.Message{}, messages...)
	m.saves++
	return nil
}

func (m *memoryTranscripts) Load(_ context.Context, uid, sessionID string) ([]model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs, ok := m.saved[uid+"/"+sessionID]
	if !ok {
		return nil, errors.New("not found")
	}
	return append([]model.Message{}, msgs...), nil
}

func (m *memoryTranscripts) get(uid, sessionID string) []model.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved[uid+"/"+sessionID]
}

func (m *memoryTranscripts) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

type stubProfiles struct {
	ensured []string
	err     error
}

func (s *stubProfiles) Ensure(_ context.Context, uid, _ string) error {
	s.ensured = append(s.ensured, uid)
	return s.err
}

func (s *stubProfiles) FindByID(context.Context, string) (*model.User, error) {
	return nil, errors.New("not implemented")
}
