// Package orchestrator 实现单个聊天会话的轮次编排：
// 用户消息入日志 → 可选的网页搜索 → 可选的思考阶段 → 补全调用 → 助手消息入日志。
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"fortec-chat-go/internal/model"
	"fortec-chat-go/pkg/log"

	"github.com/google/uuid"
)

// State 是会话当前所处的阶段。
type State string

const (
	StateIdle              State = "idle"
	StateUserSubmitted     State = "user_submitted"
	StateSearchPending     State = "search_pending"
	StateThinkingPending   State = "thinking_pending"
	StateCompletionPending State = "completion_pending"
	StateResolved          State = "resolved"
)

// Mode 决定一轮如何组装 prompt。
type Mode string

const (
	ModeChat      Mode = "chat"
	ModeWebSearch Mode = "web"
	ModeResearch  Mode = "research"
)

// FallbackErrorText 在错误没有可读信息时展示。
const FallbackErrorText = "Something went wrong. Please try again."

var (
	// ErrEmptyQuery 表示提交的内容为空。
	ErrEmptyQuery = errors.New("query is empty")
	// ErrTurnPending 表示上一轮还没有结束，新的提交被拒绝。
	ErrTurnPending = errors.New("a turn is already pending")
	// ErrUnknownMode 表示模式不合法。
	ErrUnknownMode = errors.New("unknown mode")
	// ErrUnknownModel 表示模型不在目录中。
	ErrUnknownModel = errors.New("unknown model")
)

// Searcher 是会话使用的搜索网关，失败通过 SearchOutcome.Error 表示。
type Searcher interface {
	Search(ctx context.Context, userEmail, query string) *model.SearchOutcome
}

// Completer 是会话使用的补全网关。
type Completer interface {
	Complete(ctx context.Context, userEmail string, turns []model.Turn, modelID string) (*model.CompletionReply, error)
}

// Observer 接收会话事件。回调在会话锁之外同步调用，可以回调会话的方法。
type Observer interface {
	StateChanged(state State)
	MessageAppended(msg model.Message)
	SearchResolved(query string, outcome *model.SearchOutcome)
}

// NopObserver 忽略所有事件。
type NopObserver struct{}

func (NopObserver) StateChanged(State) {}

func (NopObserver) MessageAppended(model.Message) {}

func (NopObserver) SearchResolved(string, *model.SearchOutcome) {}

// Options 配置一个会话。
type Options struct {
	UserEmail string
	ModelID   string
	// DisplayDelay 是搜索成功后、发起补全前的等待，让结果先展示出来。
	DisplayDelay time.Duration
	// ThinkingTimeout 是思考阶段等待完成信号的上限，0 表示一直等待。
	ThinkingTimeout time.Duration
	Observer        Observer
}

// Turn 是一次被接受的提交。
type Turn struct {
	// Request 是已经写入日志的用户消息。
	Request model.Message

	done  chan struct{}
	reply model.Message
}

// Done 在本轮结束（成功或失败）后关闭。
func (t *Turn) Done() <-chan struct{} {
	return t.done
}

// Reply 返回本轮追加的助手消息，只能在 Done 关闭后调用。
func (t *Turn) Reply() model.Message {
	return t.reply
}

// Session 是一个聊天会话的编排器。所有状态迁移都在 mu 保护下进行。
type Session struct {
	searcher  Searcher
	completer Completer
	observer  Observer
	email     string
	delay     time.Duration
	thinkWait time.Duration
	now       func() time.Time
	newID     func() string

	mu       sync.Mutex
	state    State
	mode     Mode
	thinking bool
	modelID  string
	messages []model.Message

	// pending 是等待回复的用户消息，waiting 表示补全调用已经发出。
	pending *model.Message
	waiting bool
	// thinkDone 在 Submit 时为带思考的一轮创建，收到完成信号时关闭。
	thinkDone chan struct{}

	searchQuery   string
	searchResults []model.SearchResult
}

// NewSession 创建一个空会话，初始为聊天模式。
func NewSession(searcher Searcher, completer Completer, opts Options) *Session {
	observer := opts.Observer
	if observer == nil {
		observer = NopObserver{}
	}
	modelID := opts.ModelID
	if _, ok := model.LookupModel(modelID); !ok {
		modelID = model.DefaultModelID
	}
	return &Session{
		searcher:  searcher,
		completer: completer,
		observer:  observer,
		email:     opts.UserEmail,
		delay:     opts.DisplayDelay,
		thinkWait: opts.ThinkingTimeout,
		now:       time.Now,
		newID:     uuid.NewString,
		state:     StateIdle,
		mode:      ModeChat,
		modelID:   modelID,
		messages:  []model.Message{},
	}
}

// Submit 把用户消息同步写入日志，并在后台推进本轮。
// 已有一轮未结束时返回 ErrTurnPending，日志不变。
func (s *Session) Submit(ctx context.Context, raw string) (*Turn, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyQuery
	}

	s.mu.Lock()
	if s.pending != nil {
		s.mu.Unlock()
		return nil, ErrTurnPending
	}
	mode, query, forced := classify(raw, s.mode)
	if query == "" {
		s.mu.Unlock()
		return nil, ErrEmptyQuery
	}
	if forced {
		s.mode = mode
		s.thinking = false
	}
	var thinkDone chan struct{}
	if s.thinking && mode == ModeChat {
		thinkDone = make(chan struct{})
	}

	msg := model.Message{
		ID:        s.newID(),
		Content:   userContent(mode, query),
		IsUser:    true,
		Timestamp: s.now().UTC(),
	}
	s.messages = append(s.messages, msg)
	s.pending = &msg
	s.state = StateUserSubmitted
	s.thinkDone = thinkDone
	modelID := s.modelID
	s.mu.Unlock()

	s.observer.MessageAppended(msg)
	s.observer.StateChanged(StateUserSubmitted)

	turn := &Turn{Request: msg, done: make(chan struct{})}
	go s.run(ctx, turn, mode, query, thinkDone, modelID)
	return turn, nil
}

// run 按模式推进一轮，直到追加助手消息。thinkDone 非 nil 时本轮带思考阶段。
func (s *Session) run(ctx context.Context, turn *Turn, mode Mode, query string, thinkDone chan struct{}, modelID string) {
	defer close(turn.done)

	var results []model.SearchResult
	final := false
	switch {
	case mode == ModeWebSearch:
		results = s.search(ctx, query)
		final = true
	case thinkDone != nil:
		s.think(ctx, turn.Request.ID, thinkDone)
		final = true
	}

	turns, ok := s.beginCompletion(turn.Request, mode, query, results, final)
	if !ok {
		log.Warnw("[Orchestrator] 本轮已经在等待回复，忽略重复的补全请求", "messageId", turn.Request.ID)
		return
	}

	reply, err := s.completer.Complete(ctx, s.email, turns, modelID)
	if err != nil {
		log.Warnw("[Orchestrator] 补全失败，以错误消息结束本轮", "messageId", turn.Request.ID, "model", modelID, "error", err)
		turn.reply = s.resolveError(err)
		return
	}
	turn.reply = s.resolveReply(reply, modelID, mode, query, results)
}

// search 调用搜索网关。成功时保留结果并等待展示延迟；失败时清空结果继续。
func (s *Session) search(ctx context.Context, query string) []model.SearchResult {
	s.setState(StateSearchPending, func() {
		s.searchQuery = query
		s.searchResults = nil
	})

	outcome := s.searcher.Search(ctx, s.email, query)
	if outcome == nil {
		outcome = &model.SearchOutcome{Error: "search returned no outcome"}
	}
	if outcome.Failed() {
		log.Warnw("[Orchestrator] 网页搜索失败，不带搜索结果继续", "query", query, "error", outcome.Error)
		s.observer.SearchResolved(query, outcome)
		return nil
	}

	results := outcome.Results
	s.mu.Lock()
	s.searchResults = results
	s.mu.Unlock()
	s.observer.SearchResolved(query, outcome)

	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
		}
	}
	return results
}

// think 进入思考阶段，等待 ThinkingComplete、超时或 ctx 取消。思考结果不影响回答。
// done 在 Submit 时已经创建，进入本阶段前收到的信号同样生效。
func (s *Session) think(ctx context.Context, messageID string, done chan struct{}) {
	s.setState(StateThinkingPending, nil)

	var expired <-chan time.Time
	if s.thinkWait > 0 {
		timer := time.NewTimer(s.thinkWait)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case <-done:
	case <-expired:
		log.Warnw("[Orchestrator] 思考阶段等待完成信号超时，直接发起补全", "messageId", messageID)
	case <-ctx.Done():
	}

	s.mu.Lock()
	s.thinkDone = nil
	s.mu.Unlock()
}

// ThinkingComplete 发出思考阶段的完成信号。
// 带思考的一轮在补全发出之前都接受信号，早于 thinking_pending 到达的信号会被记住；
// 没有这样的一轮或信号已经发过时返回 false。
func (s *Session) ThinkingComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.thinkDone == nil || s.pending == nil || s.waiting {
		return false
	}
	close(s.thinkDone)
	s.thinkDone = nil
	return true
}

// beginCompletion 检查重入保护并组装本轮要发送的对话。
func (s *Session) beginCompletion(pending model.Message, mode Mode, query string, results []model.SearchResult, final bool) ([]model.Turn, bool) {
	s.mu.Lock()
	if s.pending == nil || s.pending.ID != pending.ID || s.waiting {
		s.mu.Unlock()
		return nil, false
	}
	s.waiting = true
	s.state = StateCompletionPending
	var turns []model.Turn
	if final {
		turns = finalTurns(s.messages, pending, mode, query, results)
	} else {
		turns = directTurns(s.messages, pending, mode)
	}
	s.mu.Unlock()

	s.observer.StateChanged(StateCompletionPending)
	return turns, true
}

func (s *Session) resolveReply(reply *model.CompletionReply, modelID string, mode Mode, query string, results []model.SearchResult) model.Message {
	ts := reply.Timestamp
	if ts.IsZero() {
		ts = s.now().UTC()
	}
	msg := model.Message{
		ID:        s.newID(),
		Content:   cleanReply(reply.Text),
		Timestamp: ts,
		ModelID:   modelID,
	}
	if mode == ModeWebSearch {
		msg.SearchResults = results
		msg.SearchQuery = query
	}
	// 搜索结果保留，引用在回答旁边继续可见
	s.resolve(msg, nil)
	return msg
}

func (s *Session) resolveError(err error) model.Message {
	content := err.Error()
	if strings.TrimSpace(content) == "" {
		content = FallbackErrorText
	}
	msg := model.Message{ID: s.newID(), Content: content, Timestamp: s.now().UTC()}
	s.resolve(msg, func() {
		s.searchQuery = ""
		s.searchResults = nil
	})
	return msg
}

// resolve 追加助手消息并清除挂起状态。
func (s *Session) resolve(msg model.Message, mutate func()) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.pending = nil
	s.waiting = false
	s.state = StateResolved
	if mutate != nil {
		mutate()
	}
	s.mu.Unlock()

	s.observer.MessageAppended(msg)
	s.observer.StateChanged(StateResolved)
}

func (s *Session) setState(state State, mutate func()) {
	s.mu.Lock()
	s.state = state
	if mutate != nil {
		mutate()
	}
	s.mu.Unlock()
	s.observer.StateChanged(state)
}

// SetMode 切换界面模式。切到网页搜索或研究模式时关闭思考。
func (s *Session) SetMode(mode Mode) error {
	switch mode {
	case ModeChat, ModeWebSearch, ModeResearch:
	default:
		return ErrUnknownMode
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
	if mode != ModeChat {
		s.thinking = false
	}
	return nil
}

// SetThinking 打开或关闭思考阶段，只在聊天模式下生效。
func (s *Session) SetThinking(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thinking = enabled && s.mode == ModeChat
}

// SetModel 切换后续轮次使用的模型，已经发出的轮次不受影响。
func (s *Session) SetModel(modelID string) error {
	if _, ok := model.LookupModel(modelID); !ok {
		return ErrUnknownModel
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modelID = modelID
	return nil
}

// Clear 清空日志和搜索状态，有挂起的轮次时拒绝。
func (s *Session) Clear() error {
	return s.replaceLog(nil)
}

// Restore 用归档的日志替换当前日志，有挂起的轮次时拒绝。
func (s *Session) Restore(messages []model.Message) error {
	return s.replaceLog(messages)
}

func (s *Session) replaceLog(messages []model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		return ErrTurnPending
	}
	s.messages = append([]model.Message{}, messages...)
	s.searchQuery = ""
	s.searchResults = nil
	s.state = StateIdle
	return nil
}

// Messages 返回日志的副本。
func (s *Session) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Message{}, s.messages...)
}

// State 返回当前阶段。
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Mode 返回当前界面模式。
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Thinking 报告思考阶段是否打开。
func (s *Session) Thinking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thinking
}

// ModelID 返回后续轮次使用的模型。
func (s *Session) ModelID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modelID
}

// SearchResults 返回当前保留的搜索查询和结果。
func (s *Session) SearchResults() (string, []model.SearchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchQuery, append([]model.SearchResult(nil), s.searchResults...)
}
