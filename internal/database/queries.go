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

package database

const (
	// Key queries
	queryGetKey = `
		SELECT kind, expires_at
		FROM kv_keys
		WHERE key = ?`

	queryInsertKey = `
		INSERT INTO kv_keys (key, kind, expires_at) VALUES (?, ?, ?)`

	queryUpdateKeyExpiry = `
		UPDATE kv_keys SET expires_at = ? WHERE key = ?`

	queryDeleteKey = `
		DELETE FROM kv_keys WHERE key = ?`

	queryDeleteStringValue = `
		DELETE FROM kv_strings WHERE key = ?`

	queryDeleteHashFields = `
		DELETE FROM kv_hash_fields WHERE key = ?`

	queryDeleteZSetMembers = `
		DELETE FROM kv_zset_members WHERE key = ?`

	queryGetExpiredKeys = `
		SELECT key
		FROM kv_keys
		WHERE expires_at IS NOT NULL AND expires_at <= ?`

	// String queries
	queryInsertString = `
		INSERT INTO kv_strings (key, value) VALUES (?, ?)`

	queryGetString = `
		SELECT value FROM kv_strings WHERE key = ?`

	// Hash queries
	queryGetHashField = `
		SELECT value FROM kv_hash_fields WHERE key = ? AND field = ?`

	queryGetHashFields = `
		SELECT field, value
		FROM kv_hash_fields
		WHERE key = ?
		ORDER BY field`

	queryUpsertHashField = `
		INSERT INTO kv_hash_fields (key, field, value) VALUES (?, ?, ?)
		ON CONFLICT(key, field) DO UPDATE SET value = excluded.value`

	// Sorted set queries
	queryIncrementZSetMember = `
		INSERT INTO kv_zset_members (key, member, score) VALUES (?, ?, ?)
		ON CONFLICT(key, member) DO UPDATE SET score = score + excluded.score
		RETURNING score`

	queryGetZSetScore = `
		SELECT score FROM kv_zset_members WHERE key = ? AND member = ?`

	queryCountZSetAbove = `
		SELECT COUNT(*)
		FROM kv_zset_members
		WHERE key = ? AND (score > ? OR (score = ? AND member < ?))`

	queryGetZSetTop = `
		SELECT member, score
		FROM kv_zset_members
		WHERE key = ?
		ORDER BY score DESC, member ASC
		LIMIT ?`

	queryCountZSetMembers = `
		SELECT COUNT(*) FROM kv_zset_members WHERE key = ?`
)
