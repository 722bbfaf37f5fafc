package service

import (
	"context"
	"errors"
	"time"

	"fortec-chat-go/internal/model"
	"fortec-chat-go/pkg/llm"
	"fortec-chat-go/pkg/log"
)

var (
	// ErrInvalidMessages 表示对话为空。
	ErrInvalidMessages = errors.New("Invalid messages format")
	// ErrInvalidModel 表示模型 ID 不在目录中。
	ErrInvalidModel = errors.New("Invalid model")
)

// CompletionError 是补全网关唯一的错误类型，Message 可以直接展示给用户。
type CompletionError struct {
	Message string
	Cause   error
}

func (e *CompletionError) Error() string { return e.Message }

func (e *CompletionError) Unwrap() error { return e.Cause }

func newCompletionError(cause error) *CompletionError {
	return &CompletionError{Message: cause.Error(), Cause: cause}
}

// CompletionService 按模型目录把对话分派到三种后端之一。
type CompletionService interface {
	Complete(ctx context.Context, userEmail string, turns []model.Turn, modelID string) (*model.CompletionReply, error)
}

type completionService struct {
	chat     llm.ChatClient
	generate llm.GenerateClient
	text     llm.TextClient
	tracker  UsageTracker
	now      func() time.Time
}

// NewCompletionService 创建一个新的 CompletionService 实例。
func NewCompletionService(chat llm.ChatClient, generate llm.GenerateClient, text llm.TextClient, tracker UsageTracker) CompletionService {
	return &completionService{chat: chat, generate: generate, text: text, tracker: tracker, now: time.Now}
}

// Complete 只尝试模型对应的后端，失败时不会切换到其它后端。
// 单轮后端只发送最后一轮的内容，记账的输入文本也取最后一轮。
func (s *completionService) Complete(ctx context.Context, userEmail string, turns []model.Turn, modelID string) (*model.CompletionReply, error) {
	if len(turns) == 0 {
		return nil, newCompletionError(ErrInvalidMessages)
	}
	if modelID == "" {
		modelID = model.DefaultModelID
	}
	cfg, ok := model.LookupModel(modelID)
	if !ok {
		return nil, newCompletionError(ErrInvalidModel)
	}

	input := turns[len(turns)-1].Content
	log.Infow("[CompletionService] 开始补全", "model", modelID, "backend", cfg.Backend, "turns", len(turns))

	text, err := s.dispatch(ctx, cfg, turns, input)
	if err != nil {
		log.Errorw("[CompletionService] 补全失败", "model", modelID, "error", err)
		if input != "" {
			s.tracker.TrackChat(userEmail, modelID, input, "", false)
		}
		return nil, newCompletionError(err)
	}

	s.tracker.TrackChat(userEmail, modelID, input, text, true)
	return &model.CompletionReply{Text: text, Model: modelID, Timestamp: s.now().UTC()}, nil
}

func (s *completionService) dispatch(ctx context.Context, cfg model.ModelConfig, turns []model.Turn, input string) (string, error) {
	gen := llm.GenerationParams{Model: cfg.Alias, Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens}
	switch cfg.Backend {
	case model.BackendChat:
		messages := make([]llm.Message, 0, len(turns))
		for _, t := range turns {
			role := llm.RoleAssistant
			if t.IsUser {
				role = llm.RoleUser
			}
			messages = append(messages, llm.Message{Role: role, Content: t.Content})
		}
		return s.chat.Chat(ctx, messages, gen)
	case model.BackendGenerate:
		return s.generate.Generate(ctx, input, gen)
	default:
		return s.text.Text(ctx, llm.IdentityPrompt(cfg.Name, cfg.Alias, input), cfg.Alias)
	}
}
