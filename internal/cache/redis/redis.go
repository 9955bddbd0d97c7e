package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/webitel/grade-exporter/internal/model"
)

const (
	taskQueueKey = "grade_exporter:export_tasks"
	popTimeout   = 2 * time.Second
	statusTTL    = 24 * time.Hour
)

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Ping Redis to check the connection
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cannot connect to Redis at %s: %w", addr, err)
	}

	return &RedisCache{client: rdb}, nil
}

func (r *RedisCache) PushExportTask(task model.ExportTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal export task: %w", err)
	}
	return r.client.LPush(context.Background(), taskQueueKey, data).Err()
}

func (r *RedisCache) PopExportTask() (model.ExportTask, error) {
	var task model.ExportTask

	res, err := r.client.BRPop(context.Background(), popTimeout, taskQueueKey).Result()
	if err != nil {
		if err == redis.Nil {
			return task, fmt.Errorf("queue empty (timeout)")
		}
		return task, err
	}
	// BRPop returns [key, value]
	if len(res) < 2 {
		return task, fmt.Errorf("unexpected BRPop reply: %v", res)
	}

	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		return task, fmt.Errorf("unmarshal export task: %w", err)
	}
	return task, nil
}

func (r *RedisCache) SetRunStatus(queryID int64, status model.RunStatus) error {
	return r.client.Set(context.Background(), runStatusKey(queryID), string(status), statusTTL).Err()
}

// GetRunStatus returns an empty status when the query has no run in
// flight.
func (r *RedisCache) GetRunStatus(queryID int64) (model.RunStatus, error) {
	val, err := r.client.Get(context.Background(), runStatusKey(queryID)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", err
	}
	return model.RunStatus(val), nil
}

func (r *RedisCache) ClearRunStatus(queryID int64) error {
	return r.client.Del(context.Background(), runStatusKey(queryID)).Err()
}

func (r *RedisCache) Clear() error {
	return r.client.FlushDB(context.Background()).Err()
}

// helper to standardize keys
func runStatusKey(queryID int64) string {
	return fmt.Sprintf("grade_exporter:run:%d", queryID)
}
