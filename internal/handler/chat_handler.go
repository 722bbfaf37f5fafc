package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"fortec-chat-go/internal/config"
	"fortec-chat-go/internal/middleware"
	"fortec-chat-go/internal/model"
	"fortec-chat-go/internal/orchestrator"
	"fortec-chat-go/internal/repository"
	"fortec-chat-go/internal/service"
	"fortec-chat-go/pkg/identity"
	"fortec-chat-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait   = 10 * time.Second
	archiveWait = 5 * time.Second
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // 允许所有来源
		},
	}
)

// 客户端帧类型。
const (
	frameSubmit           = "submit"
	frameMode             = "mode"
	frameThinking         = "thinking"
	frameModel            = "model"
	frameThinkingComplete = "thinking_complete"
	frameClear            = "clear"
)

// clientFrame 是客户端发来的控制帧。
type clientFrame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Mode    string `json:"mode,omitempty"`
	Enabled bool   `json:"enabled,omitempty"`
	Model   string `json:"model,omitempty"`
}

// serverFrame 是推送给客户端的事件帧。
type serverFrame struct {
	Type      string               `json:"type"`
	SessionID string               `json:"sessionId,omitempty"`
	State     orchestrator.State   `json:"state,omitempty"`
	Message   *model.Message       `json:"message,omitempty"`
	Messages  []model.Message      `json:"messages,omitempty"`
	Query     string               `json:"query,omitempty"`
	Results   []model.SearchResult `json:"results,omitempty"`
	Settings  *sessionSettings     `json:"settings,omitempty"`
	Error     string               `json:"error,omitempty"`
	Timestamp int64                `json:"timestamp"`
}

type sessionSettings struct {
	Mode     orchestrator.Mode `json:"mode"`
	Thinking bool              `json:"thinking"`
	Model    string            `json:"model"`
}

// wsWriter 串行化对同一连接的写入。
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) send(f serverFrame) {
	f.Timestamp = time.Now().UnixMilli()
	b, err := json.Marshal(f)
	if err != nil {
		log.Error("序列化 WebSocket 帧失败", err)
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := w.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		log.Warnf("写入 WebSocket 消息失败: %v", err)
	}
}

// sessionObserver 把会话事件转成推送帧，并在每轮结束时归档日志。
type sessionObserver struct {
	out     *wsWriter
	archive func()
}

func (o *sessionObserver) StateChanged(state orchestrator.State) {
	o.out.send(serverFrame{Type: "state", State: state})
	if state == orchestrator.StateResolved && o.archive != nil {
		o.archive()
	}
}

func (o *sessionObserver) MessageAppended(msg model.Message) {
	o.out.send(serverFrame{Type: "message", Message: &msg})
}

func (o *sessionObserver) SearchResolved(query string, outcome *model.SearchOutcome) {
	o.out.send(serverFrame{Type: "search", Query: query, Results: outcome.Results, Error: outcome.Error})
}

// ChatHandler 负责处理 WebSocket 聊天会话，每个连接拥有一个编排器。
type ChatHandler struct {
	searchService     service.SearchService
	completionService service.CompletionService
	transcripts       repository.TranscriptRepository
	chatCfg           config.ChatConfig
}

// NewChatHandler 创建一个新的 ChatHandler。transcripts 为 nil 时不归档。
func NewChatHandler(searchService service.SearchService, completionService service.CompletionService, transcripts repository.TranscriptRepository, chatCfg config.ChatConfig) *ChatHandler {
	return &ChatHandler{
		searchService:     searchService,
		completionService: completionService,
		transcripts:       transcripts,
		chatCfg:           chatCfg,
	}
}

// Handle 处理一个传入的 WebSocket 连接。?session= 可以恢复之前归档的会话。
func (h *ChatHandler) Handle(c *gin.Context) {
	email := middleware.UserEmail(c)
	uid := identity.UserID(email)
	archiving := h.transcripts != nil && !identity.IsAnonymous(email)

	sessionID := c.Query("session")
	var restored []model.Message
	if sessionID != "" && archiving {
		msgs, err := h.transcripts.Load(c.Request.Context(), uid, sessionID)
		if err != nil {
			log.Warnw("[ChatHandler] 读取归档会话失败，使用新会话", "session", sessionID, "error", err)
		}
		restored = msgs
	}
	if sessionID == "" || !archiving {
		sessionID = uuid.NewString()
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	out := &wsWriter{conn: conn}
	observer := &sessionObserver{out: out}
	session := orchestrator.NewSession(h.searchService, h.completionService, orchestrator.Options{
		UserEmail:       email,
		ModelID:         h.chatCfg.DefaultModel,
		DisplayDelay:    h.chatCfg.DisplayDelay,
		ThinkingTimeout: h.chatCfg.ThinkingTimeout,
		Observer:        observer,
	})
	// 归档串行执行，并在持锁时读取日志，保证最后写入的总是当前日志
	var archiveMu sync.Mutex
	if archiving {
		observer.archive = func() {
			archiveMu.Lock()
			defer archiveMu.Unlock()
			h.archive(uid, sessionID, session.Messages())
		}
	}
	if len(restored) > 0 {
		_ = session.Restore(restored)
	}

	log.Infow("WebSocket 会话已建立", "session", sessionID, "anonymous", identity.IsAnonymous(email))
	out.send(serverFrame{Type: "session", SessionID: sessionID, Messages: session.Messages(), Settings: settingsOf(session)})

	var inflight *orchestrator.Turn
	defer func() {
		// 连接关闭时取消进行中的轮次，并等它结束后再关闭连接
		cancel()
		if inflight != nil {
			<-inflight.Done()
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			out.send(serverFrame{Type: "error", Error: "Invalid frame"})
			continue
		}

		switch frame.Type {
		case frameSubmit:
			turn, err := session.Submit(ctx, frame.Content)
			if err != nil {
				out.send(serverFrame{Type: "error", Error: err.Error()})
				continue
			}
			inflight = turn
		case frameMode:
			if err := session.SetMode(orchestrator.Mode(frame.Mode)); err != nil {
				out.send(serverFrame{Type: "error", Error: err.Error()})
				continue
			}
			out.send(serverFrame{Type: "settings", Settings: settingsOf(session)})
		case frameThinking:
			session.SetThinking(frame.Enabled)
			out.send(serverFrame{Type: "settings", Settings: settingsOf(session)})
		case frameModel:
			if err := session.SetModel(frame.Model); err != nil {
				out.send(serverFrame{Type: "error", Error: err.Error()})
				continue
			}
			out.send(serverFrame{Type: "settings", Settings: settingsOf(session)})
		case frameThinkingComplete:
			session.ThinkingComplete()
		case frameClear:
			archiveMu.Lock()
			err := session.Clear()
			if err == nil && archiving {
				h.archive(uid, sessionID, nil)
			}
			archiveMu.Unlock()
			if err != nil {
				out.send(serverFrame{Type: "error", Error: err.Error()})
				continue
			}
			out.send(serverFrame{Type: "session", SessionID: sessionID, Messages: []model.Message{}, Settings: settingsOf(session)})
		default:
			out.send(serverFrame{Type: "error", Error: "Unknown frame type"})
		}
	}
}

// archive 覆盖写入会话日志，失败只记录日志。
func (h *ChatHandler) archive(uid, sessionID string, messages []model.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), archiveWait)
	defer cancel()
	if err := h.transcripts.Save(ctx, uid, sessionID, messages); err != nil {
		log.Warnw("[ChatHandler] 归档会话失败", "session", sessionID, "error", err)
	}
}

func settingsOf(s *orchestrator.Session) *sessionSettings {
	return &sessionSettings{Mode: s.Mode(), Thinking: s.Thinking(), Model: s.ModelID()}
}
