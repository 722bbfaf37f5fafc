package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fortec-chat-go/pkg/identity"
	"fortec-chat-go/pkg/log"
	"fortec-chat-go/pkg/tasks"

	"github.com/google/uuid"
)

// UsageTracker 是网关使用的即发即忘记账入口。匿名用户的调用直接忽略。
type UsageTracker interface {
	TrackChat(email, modelID, input, output string, succeeded bool)
	TrackSearch(email, query string, succeeded bool)
	// Close 等待已经发出的记账完成。
	Close()
}

type directTracker struct {
	ledger  UsageLedger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewDirectTracker 在后台 goroutine 中直接写入账本。
func NewDirectTracker(ledger UsageLedger, timeout time.Duration) UsageTracker {
	return &directTracker{ledger: ledger, timeout: timeout}
}

func (t *directTracker) run(fn func(ctx context.Context)) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ctx, cancel := withTimeout(context.Background(), t.timeout)
		defer cancel()
		fn(ctx)
	}()
}

func (t *directTracker) TrackChat(email, modelID, input, output string, succeeded bool) {
	if identity.IsAnonymous(email) {
		return
	}
	t.run(func(ctx context.Context) {
		t.ledger.Track(ctx, email, modelID, input, output, succeeded)
	})
}

func (t *directTracker) TrackSearch(email, query string, succeeded bool) {
	if identity.IsAnonymous(email) {
		return
	}
	t.run(func(ctx context.Context) {
		t.ledger.TrackSearch(ctx, email, query, succeeded)
	})
}

func (t *directTracker) Close() {
	t.wg.Wait()
}

// UsagePublisher 发送用量事件，由 pkg/kafka 的 Producer 实现。
type UsagePublisher interface {
	PublishUsage(ctx context.Context, event tasks.UsageEvent) error
}

type kafkaTracker struct {
	publisher UsagePublisher
	timeout   time.Duration
	wg        sync.WaitGroup
}

// NewKafkaTracker 把用量事件发到 Kafka，由消费者异步写入账本。
func NewKafkaTracker(publisher UsagePublisher, timeout time.Duration) UsageTracker {
	return &kafkaTracker{publisher: publisher, timeout: timeout}
}

func (t *kafkaTracker) publish(event tasks.UsageEvent) {
	event.EventID = uuid.NewString()
	event.OccurredAt = time.Now()
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ctx, cancel := withTimeout(context.Background(), t.timeout)
		defer cancel()
		if err := t.publisher.PublishUsage(ctx, event); err != nil {
			log.Errorw("[UsageTracker] 发送用量事件失败", "eventId", event.EventID, "kind", event.Kind, "error", err)
		}
	}()
}

func (t *kafkaTracker) TrackChat(email, modelID, input, output string, succeeded bool) {
	if identity.IsAnonymous(email) {
		return
	}
	t.publish(tasks.UsageEvent{
		Kind:       tasks.UsageKindChat,
		Email:      email,
		ModelID:    modelID,
		InputText:  input,
		OutputText: output,
		Succeeded:  succeeded,
	})
}

func (t *kafkaTracker) TrackSearch(email, query string, succeeded bool) {
	if identity.IsAnonymous(email) {
		return
	}
	t.publish(tasks.UsageEvent{
		Kind:      tasks.UsageKindSearch,
		Email:     email,
		Query:     query,
		Succeeded: succeeded,
	})
}

func (t *kafkaTracker) Close() {
	t.wg.Wait()
}

// UsageEventHandler 把 Kafka 中的用量事件写入账本，实现 kafka.UsageHandler。
type UsageEventHandler struct {
	recorder UsageRecorder
}

// NewUsageEventHandler 创建一个新的 UsageEventHandler。
func NewUsageEventHandler(recorder UsageRecorder) *UsageEventHandler {
	return &UsageEventHandler{recorder: recorder}
}

// Apply 返回存储错误，消费者据此决定是否重试。
func (h *UsageEventHandler) Apply(ctx context.Context, event tasks.UsageEvent) error {
	if identity.IsAnonymous(event.Email) {
		return nil
	}
	switch event.Kind {
	case tasks.UsageKindChat:
		_, err := h.recorder.RecordChat(ctx, event.Email, event.ModelID, event.InputText, event.OutputText, event.Succeeded)
		return err
	case tasks.UsageKindSearch:
		return h.recorder.RecordSearch(ctx, event.Email, event.Query, event.Succeeded)
	default:
		return fmt.Errorf("unknown usage event kind %q", event.Kind)
	}
}
