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


package main

import (
	"errors"
	"fmt"
	"strings"

	"astromine-go/internal/common"
	"astromine-go/internal/models"
	"astromine-go/internal/scheduler"

	"github.com/urfave/cli"
)

func runSpawn(c *cli.Context) error {
	m := c.App.Metadata["config"].(*metadata)

	spawner, err := scheduler.NewSpawner(m.services.Registry, m.services.Host, m.cfg.Scheduler)
	if err != nil {
		return err
	}

	post, record, err := spawner.RunOnce(m.ctx)
	if err != nil {
		return err
	}

	w := c.App.Writer
	common.PrintHeader(w, "ASTEROID SPAWNED", common.DefaultWidth)
	common.PrintBoxRow(w, "post", post.Id, false)
	common.PrintBoxRow(w, "title", post.Title, false)
	common.PrintBoxRow(w, "capacity", record.Capacity, true)
	common.PrintFooter(w, "Asteroid is live", common.DefaultWidth)
	return nil
}

func runAsteroid(c *cli.Context) error {
	if err := required(c, "post"); err != nil {
		return err
	}
	m := c.App.Metadata["config"].(*metadata)
	postId := c.String("post")

	view, err := m.services.Game.AsteroidView(m.ctx, postId)
	if errors.Is(err, models.ErrAsteroidDepleted) {
		fmt.Fprintf(c.App.Writer, "post %s has no asteroid\n", postId)
		return nil
	}
	if err != nil {
		return err
	}

	w := c.App.Writer
	common.PrintHeader(w, "ASTEROID "+postId, common.DefaultWidth)
	common.PrintBoxRow(w, "capacity", view.Capacity, false)
	common.PrintBoxRow(w, "remaining", view.Remaining, false)
	common.PrintBoxRow(w, "expires in", common.FormatExpiry(view.ExpiresIn), false)
	for i, mineral := range models.AllMinerals {
		common.PrintBoxRow(w, string(mineral), view.Composition[mineral], i == len(models.AllMinerals)-1)
	}
	common.PrintFooter(w, fmt.Sprintf("%d of %d kg left", view.Remaining, view.Capacity), common.DefaultWidth)
	return nil
}

func runLeaderboard(c *cli.Context) error {
	if err := required(c, "post"); err != nil {
		return err
	}
	m := c.App.Metadata["config"].(*metadata)
	postId := c.String("post")

	entries, err := m.services.Game.Leaderboard(m.ctx, postId, c.Int("limit"))
	if err != nil {
		return err
	}

	w := c.App.Writer
	common.PrintHeader(w, "LEADERBOARD "+postId, common.DefaultWidth)
	if len(entries) == 0 {
		fmt.Fprintln(w, "No players have mined yet")
	}
	for i, entry := range entries {
		fmt.Fprintf(w, "%s #%-4d %-30s %12d\n",
			common.BoxPrefix(i == len(entries)-1),
			entry.Rank,
			entry.PlayerId,
			entry.Score)
	}
	common.PrintFooter(w, fmt.Sprintf("Showing %d players", len(entries)), common.DefaultWidth)
	return nil
}

func runInventory(c *cli.Context) error {
	if err := required(c, "post", "player"); err != nil {
		return err
	}
	m := c.App.Metadata["config"].(*metadata)

	summary, err := m.services.Game.PlayerSummary(m.ctx, c.String("player"), c.String("post"))
	if err != nil {
		return err
	}

	w := c.App.Writer
	common.PrintHeader(w, fmt.Sprintf("PLAYER %s ON %s", summary.PlayerId, summary.PostId), common.DefaultWidth)
	fmt.Fprintln(w, "Equipment")
	tools := m.services.Game.ToolNames()
	for i, tool := range tools {
		common.PrintBoxRow(w, tool, summary.Equipment[models.Tool(tool)], i == len(tools)-1)
	}
	fmt.Fprintln(w, "Minerals")
	for i, mineral := range models.AllMinerals {
		common.PrintBoxRow(w, string(mineral), summary.Inventory[mineral], i == len(models.AllMinerals)-1)
	}

	rank := "unranked"
	if summary.Rank > 0 {
		rank = fmt.Sprintf("#%d", summary.Rank)
	}
	common.PrintFooter(w, fmt.Sprintf("Score %d (%s)", summary.Score, rank), common.DefaultWidth)
	return nil
}

func runGrant(c *cli.Context) error {
	if err := required(c, "post", "player", "tool"); err != nil {
		return err
	}
	m := c.App.Metadata["config"].(*metadata)

	count := c.Int64("count")
	if count <= 0 {
		return fmt.Errorf("invalid count: %d", count)
	}

	total, err := m.services.Game.GrantTools(m.ctx, c.String("player"), c.String("post"), c.String("tool"), count)
	if errors.Is(err, models.ErrUnknownTool) {
		return fmt.Errorf("unknown tool %q, expected one of: %s",
			c.String("tool"), strings.Join(m.services.Game.ToolNames(), ", "))
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "granted %d %s to %s on %s, now holding %d\n",
		count, c.String("tool"), c.String("player"), c.String("post"), total)
	return nil
}
