package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fortec-chat-go/internal/config"
	"fortec-chat-go/internal/model"
	"fortec-chat-go/pkg/log"
	"fortec-chat-go/pkg/retry"
	"fortec-chat-go/pkg/search"
)

// ErrEmptySearchQuery 表示查询为空。
var ErrEmptySearchQuery = errors.New("Query is required")

// SearchService 接口定义了带超时和重试的网页搜索。
type SearchService interface {
	// Search 从不返回错误：重试耗尽时返回带错误信息、结果为空的 SearchOutcome。
	Search(ctx context.Context, userEmail, query string) *model.SearchOutcome
}

type searchService struct {
	provider       search.Provider
	indexer        search.Indexer
	tracker        UsageTracker
	attemptTimeout time.Duration
	maxRetries     int
	backoff        retry.Backoff
}

// NewSearchService 创建一个新的 SearchService 实例。indexer 可以为 nil。
// 第 n 次重试前等待 min(backoff_base·2^n, backoff_max)。
func NewSearchService(provider search.Provider, indexer search.Indexer, tracker UsageTracker, cfg config.SearchConfig) SearchService {
	return &searchService{
		provider:       provider,
		indexer:        indexer,
		tracker:        tracker,
		attemptTimeout: cfg.AttemptTimeout,
		maxRetries:     cfg.MaxRetries,
		backoff:        retry.Exponential(cfg.BackoffBase, 0, cfg.BackoffMax),
	}
}

func (s *searchService) Search(ctx context.Context, userEmail, query string) *model.SearchOutcome {
	query = strings.TrimSpace(query)
	if query == "" {
		return failedOutcome(ErrEmptySearchQuery)
	}
	log.Infof("[SearchService] 开始网页搜索, query: '%s'", query)

	var results []model.SearchResult
	err := retry.Do(ctx, s.maxRetries, s.backoff, func(attempt int) error {
		attemptCtx, cancel := withTimeout(ctx, s.attemptTimeout)
		defer cancel()

		var err error
		results, err = s.provider.Search(attemptCtx, query)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				err = fmt.Errorf("Search request timed out after %dms", s.attemptTimeout.Milliseconds())
			}
			log.Warnw("[SearchService] 搜索尝试失败", "attempt", attempt+1, "error", err)
		}
		return err
	})

	if err != nil {
		log.Errorw("[SearchService] 所有搜索尝试均失败", "query", query, "error", err)
		s.tracker.TrackSearch(userEmail, query, false)
		return failedOutcome(err)
	}

	log.Infof("[SearchService] 搜索成功, 返回 %d 条结果", len(results))
	s.tracker.TrackSearch(userEmail, query, true)
	s.cacheResults(query, results)
	return &model.SearchOutcome{
		Results:  results,
		Metadata: model.SearchMetadata{Status: "Success", ProcessedAt: time.Now().UTC()},
	}
}

// cacheResults 异步把结果写入本地摘要索引，失败只记录日志。
func (s *searchService) cacheResults(query string, results []model.SearchResult) {
	if s.indexer == nil || len(results) == 0 {
		return
	}
	go func() {
		ctx, cancel := withTimeout(context.Background(), s.attemptTimeout)
		defer cancel()
		if err := s.indexer.Index(ctx, query, results); err != nil {
			log.Warnw("[SearchService] 缓存搜索结果到索引失败", "query", query, "error", err)
		}
	}()
}

func failedOutcome(err error) *model.SearchOutcome {
	msg := err.Error()
	if msg == "" {
		msg = "Unknown error"
	}
	return &model.SearchOutcome{
		Results: []model.SearchResult{},
		Metadata: model.SearchMetadata{
			Status:       "Error",
			ProcessedAt:  time.Now().UTC(),
			ErrorMessage: msg,
		},
		Error: msg,
	}
}
