// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/taibuivan/anisync/internal/anidb/client"
	"github.com/taibuivan/anisync/internal/anidb/workflow"
	"github.com/taibuivan/anisync/internal/platform/config"
)

// streams are the terminal handles a command talks to.
type streams struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

func defaultStreams() streams {
	return streams{in: os.Stdin, out: os.Stdout, err: os.Stderr}
}

// commandContext lazily builds the client and workflow shared by subcommands.
type commandContext struct {
	streams streams

	configFlag string
	verbose    bool
	assumeYes  bool

	once        sync.Once
	cfg         *config.ClientConfig
	client      *client.Client
	coordinator *workflow.Coordinator
	initErr     error
}

func (c *commandContext) ensure() error {
	c.once.Do(func() {
		cfg, err := config.LoadClient(c.configFlag)
		if err != nil {
			c.initErr = err
			return
		}

		level := slog.LevelWarn
		if c.verbose {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(c.streams.err, &slog.HandlerOptions{Level: level}))

		session := client.NewSession()
		if cfg.Token != "" {
			session.Open(cfg.Token)
		}
		session.OnUnauthorized(func() {
			logger.Warn("session_unauthorized", slog.String("base_url", cfg.BaseURL))
			session.Close()
		})

		c.cfg = cfg
		c.client = client.New(cfg.BaseURL, session)
		c.coordinator = workflow.NewCoordinator(c.client, c.notifier(), c.confirmer(), cfg.PerPage, logger)
		logger.Debug("client_configured", slog.String("base_url", cfg.BaseURL), slog.Int("per_page", cfg.PerPage))
	})
	return c.initErr
}

func (c *commandContext) notifier() workflow.Notifier {
	return workflow.NotifierFunc(func(level workflow.Level, message string) {
		fmt.Fprintf(c.streams.err, "[%s] %s\n", level, message)
	})
}

// confirmer reads y/N from stdin unless --yes was given.
func (c *commandContext) confirmer() workflow.Confirmer {
	reader := bufio.NewReader(c.streams.in)
	return workflow.ConfirmerFunc(func(prompt string) bool {
		if c.assumeYes {
			return true
		}
		fmt.Fprintf(c.streams.err, "%s [y/N] ", prompt)
		answer, _ := reader.ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		return answer == "y" || answer == "yes"
	})
}

func newRootCommand(s streams) *cobra.Command {
	ctx := &commandContext{streams: s}

	rootCmd := &cobra.Command{
		Use:           "mapctl",
		Short:         "Curate AniDB to MyAnimeList mappings",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.ensure()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.SetIn(s.in)
	rootCmd.SetOut(s.out)
	rootCmd.SetErr(s.err)

	rootCmd.PersistentFlags().StringVarP(&ctx.configFlag, "config", "c", "", "Profile path (default ~/.config/anisync/mapctl.ini)")
	rootCmd.PersistentFlags().BoolVarP(&ctx.verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&ctx.assumeYes, "yes", "y", false, "Skip confirmation prompts")

	rootCmd.AddCommand(
		newListCommand(ctx),
		newStatsCommand(ctx),
		newGetCommand(ctx),
		newLookupCommand(ctx),
		newUnmappedCommand(ctx),
		newCreateCommand(ctx),
		newEditCommand(ctx),
		newDeleteCommand(ctx),
		newBulkDeleteCommand(ctx),
		newRefreshCommand(ctx),
		newScoreCommand(ctx),
	)

	return rootCmd
}
