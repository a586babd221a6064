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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"astromine-go/internal/models"
)

func Load() (*models.Config, error) {
	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	dbCleanupInterval, err := getEnvDuration("DB_CLEANUP_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}

	redisDialTimeout, err := getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	memCleanupInterval, err := getEnvDuration("MEMSTORE_CLEANUP_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}

	asteroidTTL, err := getEnvDuration("ASTEROID_TTL", 4*time.Hour)
	if err != nil {
		return nil, err
	}

	postInterval, err := getEnvDuration("POST_INTERVAL", 4*time.Hour)
	if err != nil {
		return nil, err
	}

	retryInterval, err := getEnvDuration("POST_RETRY_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	hostTimeout, err := getEnvDuration("HOST_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	messagesPerSecond, err := getEnvFloat("WS_MESSAGES_PER_SECOND", 5)
	if err != nil {
		return nil, err
	}

	backend := getEnvString("STORE_BACKEND", "memory")
	switch backend {
	case "memory", "sqlite", "redis":
	default:
		return nil, fmt.Errorf("invalid STORE_BACKEND %q: must be memory, sqlite or redis", backend)
	}

	return &models.Config{
		Store: models.StoreConfig{
			Backend: backend,
			Database: models.DatabaseConfig{
				Path:            getEnvString("DATABASE_PATH", "astromine.db"),
				MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
				MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
				ConnMaxLifetime: connMaxLifetime,
				ConnMaxIdleTime: connMaxIdleTime,
				PingTimeout:     pingTimeout,
				CleanupInterval: dbCleanupInterval,
			},
			Redis: models.RedisConfig{
				Addr:        getEnvString("REDIS_ADDR", "localhost:6379"),
				Password:    os.Getenv("REDIS_PASSWORD"),
				DB:          getEnvInt("REDIS_DB", 0),
				DialTimeout: redisDialTimeout,
			},
			Memory: models.MemoryConfig{
				CleanupInterval: memCleanupInterval,
			},
		},
		Scheduler: models.SchedulerConfig{
			AsteroidTTL:   asteroidTTL,
			PostInterval:  postInterval,
			RetryInterval: retryInterval,
			Community:     getEnvString("COMMUNITY", "astromine"),
			Enabled:       getEnvBool("SCHEDULER_ENABLED", true),
		},
		Host: models.HostConfig{
			WebhookURL: os.Getenv("HOST_WEBHOOK_URL"),
			Timeout:    hostTimeout,
		},
		Server: models.ServerConfig{
			Addr:              getEnvString("SERVER_ADDR", ":8080"),
			MessagesPerSecond: messagesPerSecond,
			Burst:             getEnvInt("WS_BURST", 10),
			ReadLimit:         int64(getEnvInt("WS_READ_LIMIT", 4096)),
		},
		RulesFile: os.Getenv("RULES_FILE"),
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number for %s: %q (%w)", key, value, err)
		}
		return f, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
