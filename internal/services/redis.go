package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"alive-keeper/internal/config"
	"alive-keeper/internal/models"

	"github.com/redis/go-redis/v9"
)

// SessionCache persists what has to survive a restart: the bearer token
// and the decoration preferences, both keyed by wallet address.
type SessionCache interface {
	GetToken(ctx context.Context, address string) (string, error)
	SaveToken(ctx context.Context, address, token string, expiry time.Duration) error
	DeleteToken(ctx context.Context, address string) error
}

// ActionJournal keeps the recent actions of each address.
type ActionJournal interface {
	RecordAction(ctx context.Context, record *models.ActionRecord) error
}

type RedisService struct {
	client *redis.Client
}

func NewRedisService(cfg *config.Config) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %v", err)
	}

	return &RedisService{client: client}, nil
}

func NewRedisServiceWithClient(client *redis.Client) *RedisService {
	return &RedisService{client: client}
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

func addressKey(format, address string) string {
	return fmt.Sprintf(format, strings.ToLower(address))
}

// GetToken returns "" when no token is cached.
func (s *RedisService) GetToken(ctx context.Context, address string) (string, error) {
	token, err := s.client.Get(ctx, addressKey(KeySessionToken, address)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get session token: %v", err)
	}
	return token, nil
}

// SaveToken stores the token. A zero expiry keeps it until deleted.
func (s *RedisService) SaveToken(ctx context.Context, address, token string, expiry time.Duration) error {
	if expiry < 0 {
		expiry = 0
	}
	return s.client.Set(ctx, addressKey(KeySessionToken, address), token, expiry).Err()
}

func (s *RedisService) DeleteToken(ctx context.Context, address string) error {
	return s.client.Del(ctx, addressKey(KeySessionToken, address)).Err()
}

// GetDecorations returns the defaults when nothing is stored.
func (s *RedisService) GetDecorations(ctx context.Context, address string) (models.DecorationConfig, error) {
	cfg := models.DefaultDecorationConfig()

	data, err := s.client.Get(ctx, addressKey(KeyDecorations, address)).Result()
	if errors.Is(err, redis.Nil) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to get decorations: %v", err)
	}

	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return models.DefaultDecorationConfig(), fmt.Errorf("failed to unmarshal decorations: %v", err)
	}
	return cfg, nil
}

func (s *RedisService) SaveDecorations(ctx context.Context, address string, cfg models.DecorationConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal decorations: %v", err)
	}
	return s.client.Set(ctx, addressKey(KeyDecorations, address), data, 0).Err()
}

func (s *RedisService) RecordAction(ctx context.Context, record *models.ActionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal action: %v", err)
	}

	journalKey := addressKey(KeyActions, record.Address)

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, fmt.Sprintf(KeyAction, record.ID), data, TTLAction)
	pipe.ZAdd(ctx, journalKey, redis.Z{
		Score:  float64(record.CreatedAt.UnixNano()),
		Member: record.ID,
	})
	// Keep only the most recent entries
	pipe.ZRemRangeByRank(ctx, journalKey, 0, -(MaxJournalEntries + 1))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record action: %v", err)
	}
	return nil
}

// GetActions returns the most recent actions first.
func (s *RedisService) GetActions(ctx context.Context, address string, limit int64) ([]*models.ActionRecord, error) {
	if limit <= 0 || limit > MaxJournalEntries {
		limit = 50
	}

	ids, err := s.client.ZRevRange(ctx, addressKey(KeyActions, address), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get action ids: %v", err)
	}
	if len(ids) == 0 {
		return []*models.ActionRecord{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, fmt.Sprintf(KeyAction, id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("pipeline execution failed: %v", err)
	}

	records := make([]*models.ActionRecord, 0, len(ids))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil {
			continue
		}

		var record models.ActionRecord
		if err := json.Unmarshal([]byte(data), &record); err != nil {
			continue
		}
		records = append(records, &record)
	}

	return records, nil
}

func (s *RedisService) CheckRateLimit(ctx context.Context, subject, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, strings.ToLower(subject), action)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %v", err)
	}

	if count == 1 {
		s.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}
