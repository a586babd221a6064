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
	"context"
	"fmt"
	"os"
	"strings"

	"astromine-go/internal/common"
	"astromine-go/internal/config"
	"astromine-go/internal/models"

	"github.com/urfave/cli"
	"go.uber.org/zap"
)

type metadata struct {
	services *common.Services
	cfg      *models.Config
	ctx      context.Context
	cleanup  func()
}

var version = "dev"

func main() {
	app := cli.NewApp()
	app.Name = "astroctl"
	app.Usage = "operate an Astromine deployment"
	app.Version = version

	app.Writer = os.Stdout
	app.ErrWriter = os.Stderr

	postFlag := cli.StringFlag{
		Name:  "post, p",
		Value: "",
		Usage: "*post `ID`",
	}
	playerFlag := cli.StringFlag{
		Name:  "player, u",
		Value: "",
		Usage: "*player `NAME`",
	}

	app.Commands = []cli.Command{
		{
			Name:      "spawn",
			Usage:     "create a new asteroid post now",
			ArgsUsage: "\n   (* = required)",
			Action:    runSpawn,
		},
		{
			Name:      "asteroid",
			Usage:     "show the asteroid of a post",
			ArgsUsage: "\n   (* = required)",
			Flags:     []cli.Flag{postFlag},
			Action:    runAsteroid,
		},
		{
			Name:      "leaderboard",
			Usage:     "show the leaderboard of a post",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				postFlag,
				cli.IntFlag{
					Name:  "limit, l",
					Value: 0,
					Usage: " number of entries `COUNT`",
				},
			},
			Action: runLeaderboard,
		},
		{
			Name:      "inventory",
			Usage:     "show a player's equipment and minerals on a post",
			ArgsUsage: "\n   (* = required)",
			Flags:     []cli.Flag{postFlag, playerFlag},
			Action:    runInventory,
		},
		{
			Name:      "grant",
			Usage:     "credit tools to a player on a post",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				postFlag,
				playerFlag,
				cli.StringFlag{
					Name:  "tool, t",
					Value: "",
					Usage: "*tool `NAME`",
				},
				cli.Int64Flag{
					Name:  "count, c",
					Value: 1,
					Usage: " number of tools `COUNT`",
				},
			},
			Action: runGrant,
		},
	}

	app.Before = func(c *cli.Context) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		_, loggerCleanup := common.InitializeLogger()

		ctx := context.Background()
		services, err := common.InitializeServices(ctx, cfg)
		if err != nil {
			loggerCleanup()
			return fmt.Errorf("failed to initialize services: %w", err)
		}

		c.App.Metadata = map[string]interface{}{
			"config": &metadata{
				services: services,
				cfg:      cfg,
				ctx:      ctx,
				cleanup:  loggerCleanup,
			},
		}
		return nil
	}

	app.After = func(c *cli.Context) error {
		m, ok := c.App.Metadata["config"].(*metadata)
		if !ok {
			return nil
		}
		defer m.cleanup()
		if err := m.services.Close(); err != nil {
			zap.L().Warn("Failed to close services", zap.Error(err))
		}
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(app.ErrWriter, "terminated with error: %s\n", err)
		os.Exit(1)
	}
}

func required(c *cli.Context, names ...string) error {
	var missing []string
	for _, name := range names {
		if strings.TrimSpace(c.String(name)) == "" {
			missing = append(missing, "--"+name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required flags: %s", strings.Join(missing, ", "))
	}
	return nil
}
