package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"fortec-chat-go/internal/model"

	"github.com/minio/minio-go/v7"
)

// TranscriptRepository 把会话日志归档到对象存储，并能按会话取回。
type TranscriptRepository interface {
	Save(ctx context.Context, uid, sessionID string, messages []model.Message) error
	Load(ctx context.Context, uid, sessionID string) ([]model.Message, error)
}

type minioTranscriptRepository struct {
	client     *minio.Client
	bucketName string
}

// NewTranscriptRepository 创建基于 MinIO 的会话归档。
func NewTranscriptRepository(client *minio.Client, bucketName string) TranscriptRepository {
	return &minioTranscriptRepository{client: client, bucketName: bucketName}
}

// TranscriptObjectName 返回归档对象的路径 transcripts/{uid}/{session}.json。
func TranscriptObjectName(uid, sessionID string) string {
	return fmt.Sprintf("transcripts/%s/%s.json", uid, sessionID)
}

// Save 覆盖写入整段会话日志。
func (r *minioTranscriptRepository) Save(ctx context.Context, uid, sessionID string, messages []model.Message) error {
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}
	_, err = r.client.PutObject(ctx, r.bucketName, TranscriptObjectName(uid, sessionID), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to put transcript: %w", err)
	}
	return nil
}

// Load 读取归档；对象不存在时返回空日志。
func (r *minioTranscriptRepository) Load(ctx context.Context, uid, sessionID string) ([]model.Message, error) {
	obj, err := r.client.GetObject(ctx, r.bucketName, TranscriptObjectName(uid, sessionID), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get transcript: %w", err)
	}
	defer obj.Close()

	var messages []model.Message
	if err := json.NewDecoder(obj).Decode(&messages); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return []model.Message{}, nil
		}
		return nil, fmt.Errorf("failed to decode transcript: %w", err)
	}
	return messages, nil
}
