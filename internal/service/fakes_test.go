package service

import (
	"context"
	"sync"

	"fortec-chat-go/internal/model"
	"fortec-chat-go/pkg/llm"
)

type trackedChat struct {
	Email, ModelID, Input, Output string
	Succeeded                     bool
}

type trackedSearch struct {
	Email, Query string
	Succeeded    bool
}

// recordingTracker 同步记录所有记账调用。
type recordingTracker struct {
	mu       sync.Mutex
	chats    []trackedChat
	searches []trackedSearch
}

func (r *recordingTracker) TrackChat(email, modelID, input, output string, succeeded bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chats = append(r.chats, trackedChat{email, modelID, input, output, succeeded})
}

func (r *recordingTracker) TrackSearch(email, query string, succeeded bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.searches = append(r.searches, trackedSearch{email, query, succeeded})
}

func (r *recordingTracker) Close() {}

type fakeChat struct {
	got   []llm.Message
	gen   llm.GenerationParams
	reply string
	err   error
}

func (f *fakeChat) Chat(_ context.Context, messages []llm.Message, gen llm.GenerationParams) (string, error) {
	f.got, f.gen = messages, gen
	return f.reply, f.err
}

type fakeGenerate struct {
	prompt string
	reply  string
	err    error
}

func (f *fakeGenerate) Generate(_ context.Context, prompt string, _ llm.GenerationParams) (string, error) {
	f.prompt = prompt
	return f.reply, f.err
}

type fakeText struct {
	prompt, model string
	reply         string
	err           error
}

func (f *fakeText) Text(_ context.Context, prompt, model string) (string, error) {
	f.prompt, f.model = prompt, model
	return f.reply, f.err
}

type scriptedProvider struct {
	mu      sync.Mutex
	calls   int
	queries []string
	script  func(call int) ([]model.SearchResult, error)
}

func (p *scriptedProvider) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	p.mu.Lock()
	p.calls++
	call := p.calls
	p.queries = append(p.queries, query)
	p.mu.Unlock()
	return p.script(call)
}

func snapshotOf(ctx context.Context, l UsageLedger, email string) *model.DashboardView {
	view, _ := l.DashboardSnapshot(ctx, email)
	return view
}
