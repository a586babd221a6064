/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"astromine-go/internal/asteroid"
	"astromine-go/internal/host"
	"astromine-go/internal/models"

	"go.uber.org/zap"
)

const titleFormat = "New Asteroid Discovered! (Capacity: %dkg)"

// ANSI color helpers for console output.
const (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorCyan  = "\033[36m"
)

// Spawner periodically publishes a post with a freshly generated asteroid.
type Spawner struct {
	registry *asteroid.Registry
	host     host.ContentHost

	community     string
	postInterval  time.Duration
	retryInterval time.Duration

	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

func NewSpawner(registry *asteroid.Registry, contentHost host.ContentHost, cfg models.SchedulerConfig) (*Spawner, error) {
	if cfg.PostInterval <= 0 {
		return nil, fmt.Errorf("post interval must be positive, got %v", cfg.PostInterval)
	}
	if cfg.RetryInterval <= 0 {
		return nil, fmt.Errorf("retry interval must be positive, got %v", cfg.RetryInterval)
	}
	if cfg.Community == "" {
		return nil, fmt.Errorf("community cannot be empty")
	}

	return &Spawner{
		registry:      registry,
		host:          contentHost,
		community:     cfg.Community,
		postInterval:  cfg.PostInterval,
		retryInterval: cfg.RetryInterval,
		stopChan:      make(chan struct{}),
		doneChan:      make(chan struct{}),
	}, nil
}

// Title is the post title announcing an asteroid of the given capacity.
func Title(capacity int64) string {
	return fmt.Sprintf(titleFormat, capacity)
}

// RunOnce generates an asteroid, publishes its post and stores the
// asteroid under the new post id.
func (s *Spawner) RunOnce(ctx context.Context) (*models.Post, *models.AsteroidRecord, error) {
	record := s.registry.Generate()

	post, err := s.host.SubmitPost(ctx, host.SubmitPostParams{
		Community: s.community,
		Title:     Title(record.Capacity),
		Capacity:  record.Capacity,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to submit post: %w", err)
	}

	record.PostId = post.Id
	if err := s.registry.Persist(ctx, post.Id, record); err != nil {
		return nil, nil, fmt.Errorf("failed to persist asteroid for post %s: %w", post.Id, err)
	}

	zap.L().Info("Asteroid post spawned",
		zap.String("post_id", post.Id),
		zap.Int64("capacity", record.Capacity))
	return post, &record, nil
}

// Start runs the spawn job in the background until Stop is called or ctx
// is cancelled. The first post is made after one full interval.
func (s *Spawner) Start(ctx context.Context) {
	zap.L().Info("Starting asteroid spawner",
		zap.Duration("post_interval", s.postInterval),
		zap.Duration("retry_interval", s.retryInterval),
		zap.String("community", s.community))
	go s.runLoop(ctx)
}

// Stop gracefully stops the spawner
func (s *Spawner) Stop() {
	s.stopOnce.Do(func() {
		zap.L().Info("Stopping asteroid spawner")
		close(s.stopChan)
		<-s.doneChan
		zap.L().Info("Asteroid spawner stopped")
	})
}

func (s *Spawner) runLoop(ctx context.Context) {
	defer close(s.doneChan)

	timer := time.NewTimer(s.postInterval)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			timer.Reset(s.spawn(ctx))
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// spawn runs one job and returns the delay until the next attempt.
func (s *Spawner) spawn(ctx context.Context) time.Duration {
	post, record, err := s.RunOnce(ctx)
	if err != nil {
		fmt.Printf("%s[%s] ✗ Asteroid spawn failed, retrying in %s: %s%s\n",
			colorRed, time.Now().Format("15:04:05"), s.retryInterval, err, colorReset)
		zap.L().Error("Failed to spawn asteroid post",
			zap.Duration("retry_in", s.retryInterval),
			zap.Error(err))
		return s.retryInterval
	}

	fmt.Printf("%s[%s]%s %s✓ %s%s (%s)\n",
		colorCyan, time.Now().Format("15:04:05"), colorReset,
		colorGreen, post.Title, colorReset, post.Id)
	zap.L().Debug("Next asteroid spawn scheduled",
		zap.String("last_post_id", post.Id),
		zap.Int64("last_capacity", record.Capacity),
		zap.Duration("next_in", s.postInterval))
	return s.postInterval
}
