// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taibuivan/anisync/internal/anidb/confidence"
	"github.com/taibuivan/anisync/internal/anidb/mapping"
	"github.com/taibuivan/anisync/internal/anidb/workflow"
)

// reportedError is a failure the coordinator has already shown to the user.
type reportedError struct{ error }

func (e reportedError) Unwrap() error { return e.error }

func reported(err error) error {
	if err == nil {
		return nil
	}
	return reportedError{err}
}

func parseAnidbID(arg string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid AniDB ID %q: must be a positive integer", arg)
	}
	return id, nil
}

func (c *commandContext) printRows(rows []workflow.Row) {
	if len(rows) == 0 {
		fmt.Fprintln(c.streams.out, workflow.EmptyListLabel)
		return
	}

	table := make([][]string, 0, len(rows))
	for _, row := range rows {
		mark := ""
		if row.Selected {
			mark = "*"
		}
		table = append(table, []string{mark, row.AnidbID, row.MalID, row.Title, row.Confidence, string(row.Tier), row.SourceLabel})
	}
	fmt.Fprintln(c.streams.out, renderTable(
		[]string{"", "AniDB ID", "MAL ID", "Title", "Confidence", "Tier", "Source"},
		table,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft, alignRight, alignLeft, alignLeft},
	))
}

func (c *commandContext) printRecord(record *mapping.Mapping) {
	c.printRows([]workflow.Row{workflow.NewRow(record, false)})
}

// # Listing

func newListCommand(c *commandContext) *cobra.Command {
	var (
		page   int
		source string
		sortBy string
		desc   bool
		search string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List mappings page by page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter *mapping.Source
			if source != "" {
				value := mapping.Source(source)
				if !value.Valid() {
					return fmt.Errorf("unknown source %q", source)
				}
				filter = &value
			}
			field := mapping.SortField(sortBy)
			if !field.Valid() {
				return fmt.Errorf("unknown sort field %q", sortBy)
			}

			c.coordinator.UpdateQuery(func(query *workflow.Query) {
				query.SetSource(filter)
				query.SetSearch(search)
				if field != query.SortField() {
					query.ToggleSort(field)
				}
				if desc {
					query.ToggleSort(field)
				}
				query.SetPage(page)
			})

			if err := c.coordinator.Load(cmd.Context()); err != nil {
				return reported(err)
			}

			c.printRows(c.coordinator.Rows())
			if search == "" {
				fmt.Fprintf(c.streams.out, "Page %d of %d (%d mappings)\n", max(page, 1), max(c.coordinator.TotalPages(), 1), c.coordinator.Total())
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&page, "page", "p", 1, "Page number")
	cmd.Flags().StringVar(&source, "source", "", "Filter by source (manual, auto, github_file, jellyfin_webhook)")
	cmd.Flags().StringVar(&sortBy, "sort", string(mapping.SortAnidbID), "Sort column")
	cmd.Flags().BoolVar(&desc, "desc", false, "Sort descending")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Search by AniDB ID, MAL ID or title")
	return cmd
}

func newStatsCommand(c *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show mapping statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.coordinator.RefreshStatistics(cmd.Context()); err != nil {
				return reported(err)
			}

			lines := workflow.StatisticLines(c.coordinator.Statistics())
			rows := make([][]string, 0, len(lines))
			for _, line := range lines {
				rows = append(rows, []string{line.Label, line.Value})
			}
			fmt.Fprintln(c.streams.out, renderTable([]string{"Statistic", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
}

func newGetCommand(c *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get <anidb-id>",
		Short: "Show one mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAnidbID(args[0])
			if err != nil {
				return err
			}
			record, err := c.client.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			c.printRecord(record)
			return nil
		},
	}
}

func newLookupCommand(c *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <anidb-id>",
		Short: "Resolve the MyAnimeList ID of an AniDB ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAnidbID(args[0])
			if err != nil {
				return err
			}
			result, err := c.client.LookupMalID(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.streams.out, "AniDB ID %d maps to MyAnimeList ID %d\n", result.AnidbID, result.MalID)
			return nil
		},
	}
}

func newUnmappedCommand(c *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "unmapped",
		Short: "List mappings without a MyAnimeList ID",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := c.client.ListUnmapped(cmd.Context(), limit)
			if err != nil {
				return err
			}
			rows := make([]workflow.Row, 0, len(records))
			for _, record := range records {
				rows = append(rows, workflow.NewRow(record, false))
			}
			c.printRows(rows)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", mapping.DefaultUnmappedLimit, "Maximum records to show")
	return cmd
}

// # Editing

type formFlags struct {
	anidbID  string
	malID    string
	title    string
	score    float64
	source   string
	malTitle string
}

func (f *formFlags) register(cmd *cobra.Command, withAnidbID bool) {
	if withAnidbID {
		cmd.Flags().StringVar(&f.anidbID, "anidb-id", "", "AniDB ID")
	}
	cmd.Flags().StringVar(&f.malID, "mal-id", "", "MyAnimeList ID")
	cmd.Flags().StringVar(&f.title, "title", "", "AniDB title")
	cmd.Flags().Float64Var(&f.score, "score", workflow.DefaultConfidence, "Confidence score between 0 and 1")
	cmd.Flags().StringVar(&f.source, "source", string(mapping.SourceManual), "Source tag")
	cmd.Flags().StringVar(&f.malTitle, "mal-title", "", "Calculate the score against this MyAnimeList title")
}

// apply copies the flags the user set onto the open form.
func (f *formFlags) apply(cmd *cobra.Command, c *commandContext, editor *workflow.Editor) error {
	fields := []struct {
		flag, field string
		value       string
	}{
		{"anidb-id", mapping.FieldAnidbID, f.anidbID},
		{"mal-id", mapping.FieldMalID, f.malID},
		{"title", mapping.FieldTitle, f.title},
	}
	for _, entry := range fields {
		if cmd.Flags().Changed(entry.flag) {
			if err := editor.SetField(entry.field, entry.value); err != nil {
				return err
			}
		}
	}
	if cmd.Flags().Changed("score") {
		if err := editor.SetScore(f.score); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("source") {
		if err := editor.SetSource(mapping.Source(f.source)); err != nil {
			return err
		}
	}

	if f.malTitle != "" {
		current := editor.Form().Score
		calculated, err := editor.CalculateConfidence(cmd.Context(), f.malTitle)
		if err != nil {
			return reported(err)
		}
		fmt.Fprintf(c.streams.out, "Confidence: current %s, calculated %s\n",
			confidence.FormatPercent(&current), confidence.FormatPercent(&calculated))
	}
	return nil
}

func (c *commandContext) submit(cmd *cobra.Command, editor *workflow.Editor) error {
	record, err := editor.Submit(cmd.Context())
	if err != nil {
		for field, message := range editor.Errors() {
			fmt.Fprintf(c.streams.err, "  %s: %s\n", field, message)
		}
		return reported(err)
	}
	c.printRecord(record)
	return nil
}

func newCreateCommand(c *commandContext) *cobra.Command {
	flags := &formFlags{}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a mapping",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			editor := workflow.NewEditor(c.coordinator)
			editor.OpenCreate()
			if err := flags.apply(cmd, c, editor); err != nil {
				return err
			}
			return c.submit(cmd, editor)
		},
	}
	flags.register(cmd, true)
	return cmd
}

func newEditCommand(c *commandContext) *cobra.Command {
	flags := &formFlags{}
	cmd := &cobra.Command{
		Use:   "edit <anidb-id>",
		Short: "Edit a mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAnidbID(args[0])
			if err != nil {
				return err
			}
			record, err := c.client.Get(cmd.Context(), id)
			if err != nil {
				return err
			}

			editor := workflow.NewEditor(c.coordinator)
			editor.OpenEdit(record)
			if err := flags.apply(cmd, c, editor); err != nil {
				return err
			}
			return c.submit(cmd, editor)
		},
	}
	flags.register(cmd, false)
	return cmd
}

// # Deletion

func newDeleteCommand(c *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <anidb-id>",
		Short: "Delete a mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAnidbID(args[0])
			if err != nil {
				return err
			}
			record, err := c.client.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			_, err = c.coordinator.Delete(cmd.Context(), record)
			return reported(err)
		},
	}
}

func newBulkDeleteCommand(c *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "bulk-delete <anidb-id>...",
		Short: "Delete several mappings, all or nothing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				id, err := parseAnidbID(arg)
				if err != nil {
					return err
				}
				if !c.coordinator.IsSelected(id) {
					c.coordinator.ToggleSelection(id)
				}
			}
			_, err := c.coordinator.BulkDelete(cmd.Context())
			return reported(err)
		},
	}
}

// # Maintenance

func newRefreshCommand(c *commandContext) *cobra.Command {
	var sourceURL string
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Resynchronise mappings from the feed and re-score",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var source *string
			if sourceURL != "" {
				source = &sourceURL
			}
			result, err := c.coordinator.Refresh(cmd.Context(), source)
			if err != nil {
				return reported(err)
			}
			fmt.Fprintln(c.streams.out, renderTable(
				[]string{"Loaded", "Updated", "Errors"},
				[][]string{{strconv.Itoa(result.Loaded), strconv.Itoa(result.Updated), strconv.Itoa(result.Errors)}},
				[]columnAlignment{alignRight, alignRight, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&sourceURL, "source-url", "", "Load this feed instead of the server default")
	return cmd
}

func newScoreCommand(c *commandContext) *cobra.Command {
	var (
		episodeMatch bool
		yearDiff     int
	)
	cmd := &cobra.Command{
		Use:   "score <anidb-title> <mal-title>",
		Short: "Compute the confidence score of two titles",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			request := mapping.ScoreRequest{AnidbTitle: args[0], MalTitle: args[1]}
			if episodeMatch || yearDiff != 0 {
				request.AdditionalFactors = &mapping.ScoreFactors{EpisodeCountMatch: episodeMatch, YearDifference: yearDiff}
			}

			result, err := c.coordinator.Score(cmd.Context(), request)
			if err != nil {
				return reported(err)
			}
			score := result.ConfidenceScore
			fmt.Fprintf(c.streams.out, "%s (%s)\n", confidence.FormatPercent(&score), confidence.Classify(&score).Tier)
			return nil
		},
	}
	cmd.Flags().BoolVar(&episodeMatch, "episode-match", false, "Episode counts agree")
	cmd.Flags().IntVar(&yearDiff, "year-diff", 0, "Difference between air years")
	return cmd
}
