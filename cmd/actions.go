package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/desertthunder/depicts/internal/server"
	"github.com/desertthunder/depicts/internal/shared"
	"github.com/urfave/cli/v3"
)

const watchInterval = 200 * time.Millisecond

// Setup initializes the database, runs migrations, and writes a config
// file from the embedded template when none exists.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		if config, err := shared.LoadConfig(configPath); err == nil {
			r.config = config
		}
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)
	if err := r.connect(); err != nil {
		return err
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return nil
}

// Serve runs the HTTP API until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.connect(); err != nil {
		return err
	}
	defer r.Close()

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	router := server.NewBasicRouter()
	router.Use(server.Recovery(r.logger), server.Logging(r.logger))
	router.Handler(server.NewAPIHandler(r.engine, r.registry, r.repo, r.client, r.logger))

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(addr, router, r.logger).Start(sigCtx)
}

// Analyze submits an analysis job and, unless told otherwise, follows
// it to completion and prints the category summary.
func (r *Runner) Analyze(ctx context.Context, cmd *cli.Command) error {
	category := strings.TrimSpace(cmd.Args().First())
	if category == "" {
		return fmt.Errorf("%w: category", shared.ErrMissingArgument)
	}

	if err := r.connect(); err != nil {
		return err
	}

	snap, err := r.engine.Submit(ctx, category)
	if err != nil {
		return err
	}

	if cmd.Bool("no-wait") {
		return r.writeJSON(snap, false)
	}

	last := ""
	for {
		snap, err = r.registry.Snapshot(snap.ID)
		if err != nil {
			return err
		}

		if line := fmt.Sprintf("[%3d%%] %-10s %s", snap.Percent, snap.Phase, snap.Message); line != last {
			r.writePlainln(line)
			last = line
		}

		if snap.Phase == "done" || snap.Phase == "error" || snap.Phase == "cancelled" {
			break
		}

		select {
		case <-ctx.Done():
			r.registry.Cancel(snap.ID)
			return ctx.Err()
		case <-time.After(watchInterval):
		}
	}

	switch snap.Phase {
	case "error":
		return fmt.Errorf("analysis failed: %s", snap.Error)
	case "cancelled":
		return r.writePlainln("analysis cancelled")
	}

	summary, err := r.repo.Summary(snap.Category)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(summary, true)
	}

	r.writePlainln("")
	r.writePlainln("Category: %s", summary.Category)
	r.writePlainln("Files:    %d", summary.Total)
	r.writePlainln("Depicts:  %d with, %d without (%d%%)", summary.WithDepicts, summary.WithoutDepicts, summary.Coverage)
	return nil
}

// History lists stored category summaries.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	if err := r.connect(); err != nil {
		return err
	}

	summaries, err := r.repo.ListCategories()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(summaries, true)
	}

	if len(summaries) == 0 {
		return r.writePlainln("no categories analyzed yet")
	}

	r.writePlainln("%-40s %6s %6s %5s  %s", "CATEGORY", "FILES", "DEPICT", "COV", "ANALYZED")
	for _, summary := range summaries {
		r.writePlainln("%-40s %6d %6d %4d%%  %s",
			summary.Category,
			summary.Total,
			summary.WithDepicts,
			summary.Coverage,
			summary.LastAnalyzed.Format("2006-01-02 15:04"),
		)
	}
	return nil
}

// Results shows per-file rows for one category.
func (r *Runner) Results(ctx context.Context, cmd *cli.Command) error {
	category := strings.TrimSpace(cmd.Args().First())
	if category == "" {
		return fmt.Errorf("%w: category", shared.ErrMissingArgument)
	}

	if err := r.connect(); err != nil {
		return err
	}

	summary, err := r.repo.Summary(category)
	if err != nil {
		return err
	}

	files, err := r.repo.ListByCategory(category)
	if err != nil {
		return err
	}

	if cmd.Bool("missing") {
		kept := files[:0]
		for _, record := range files {
			if !record.HasDepicts {
				kept = append(kept, record)
			}
		}
		files = kept
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{"summary": summary, "files": files}, true)
	}

	r.writePlainln("%s: %d files, %d%% with depicts", summary.Category, summary.Total, summary.Coverage)
	for _, record := range files {
		marker := "✗"
		detail := ""
		if record.HasDepicts {
			marker = "✓"
			detail = record.Depicts
		}
		r.writePlainln("  %s %s  %s", marker, record.FileName, detail)
	}
	return nil
}

// Delete removes stored rows for a category.
func (r *Runner) Delete(ctx context.Context, cmd *cli.Command) error {
	category := strings.TrimSpace(cmd.Args().First())
	if category == "" {
		return fmt.Errorf("%w: category", shared.ErrMissingArgument)
	}

	if err := r.connect(); err != nil {
		return err
	}

	deleted, err := r.repo.DeleteCategory(category)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return fmt.Errorf("%w: no results for category %s", shared.ErrNotFound, category)
	}

	return r.writePlainln("deleted %d rows for %s", deleted, category)
}

// SuggestCategories prints category name suggestions for a prefix query.
func (r *Runner) SuggestCategories(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(cmd.Args().First())
	if query == "" {
		return fmt.Errorf("%w: query", shared.ErrMissingArgument)
	}

	if err := r.connect(); err != nil {
		return err
	}

	suggestions, err := r.client.SuggestCategories(ctx, query, int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	if len(suggestions) == 0 {
		return r.writePlainln("no matching categories")
	}
	for _, name := range suggestions {
		r.writePlainln("%s", name)
	}
	return nil
}

// SuggestDepicts prints candidate depicts items for a file name.
func (r *Runner) SuggestDepicts(ctx context.Context, cmd *cli.Command) error {
	fileName := strings.TrimSpace(cmd.Args().First())
	if fileName == "" {
		return fmt.Errorf("%w: file", shared.ErrMissingArgument)
	}

	if err := r.connect(); err != nil {
		return err
	}

	suggestions, err := r.client.SuggestDepicts(ctx, fileName, int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	if len(suggestions) == 0 {
		return r.writePlainln("no suggestions for %s", fileName)
	}
	for _, suggestion := range suggestions {
		line := fmt.Sprintf("%-12s %s", suggestion.QID, suggestion.Label)
		if suggestion.Description != "" {
			line = fmt.Sprintf("%s • %s", line, suggestion.Description)
		}
		r.writePlainln("%s", line)
	}
	return nil
}
