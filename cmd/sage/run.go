package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	temporalclient "go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/codesage/sage/internal/app"
	"github.com/codesage/sage/internal/assistant"
	"github.com/codesage/sage/internal/config"
	"github.com/codesage/sage/internal/folders"
	"github.com/codesage/sage/internal/history"
	"github.com/codesage/sage/internal/temporal"
	"github.com/codesage/sage/internal/watch"
)

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// targetFolders returns args as absolute paths, or the selected folders
// when args is empty.
func targetFolders(a *app.App, args []string) ([]string, error) {
	if len(args) == 0 {
		selected, err := a.Assistant.Selected()
		if err != nil {
			return nil, err
		}
		if len(selected) == 0 {
			return nil, errors.New("no folders selected; run 'sage folders add <path>'")
		}
		return selected, nil
	}
	out := make([]string, len(args))
	for i, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, err
		}
		out[i] = abs
	}
	return out, nil
}

func runIndex(ctx context.Context, a *app.App, args []string) error {
	targets, err := targetFolders(a, args)
	if err != nil {
		return err
	}
	results, err := a.Assistant.Refresh(ctx, a.Settings(), targets)
	for _, r := range results {
		printRebuild(r)
	}
	return err
}

func runIndexTemporal(ctx context.Context, a *app.App, args []string) error {
	targets, err := targetFolders(a, args)
	if err != nil {
		return err
	}
	tc := a.Config.Temporal
	c, err := temporalclient.Dial(temporalclient.Options{
		HostPort:  tc.Host,
		Namespace: tc.Namespace,
	})
	if err != nil {
		return fmt.Errorf("temporal client: %w", err)
	}
	defer c.Close()

	out, err := temporal.RunRefresh(ctx, c, tc.TaskQueue, temporal.RefreshInput{
		Folders:  targets,
		Settings: a.Settings(),
	})
	if err != nil {
		return err
	}
	failed := 0
	for _, r := range out.Results {
		printFolderResult(r)
		if r.Error != "" {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d folders failed", failed, len(out.Results))
	}
	return nil
}

func runWatch(ctx context.Context, a *app.App, args []string) error {
	targets, err := targetFolders(a, args)
	if err != nil {
		return err
	}
	s := a.Settings()
	logger := a.Logger.Named("watch")
	w, err := watch.New(targets, assistant.FileFilter(s), watch.DefaultDebounce, func(ctx context.Context, folder string) {
		res, err := a.Assistant.RefreshFolder(ctx, s, folder)
		if err != nil {
			logger.Error("refresh failed", zap.String("folder", folder), zap.Error(err))
			return
		}
		printRebuild(res)
	}, logger)
	if err != nil {
		return err
	}
	printInfo("Watching %d folder(s); press Ctrl+C to stop", len(targets))
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runAsk(ctx context.Context, a *app.App, question string, asJSON bool) error {
	ans, err := a.Assistant.Ask(ctx, a.Settings(), question)
	if err != nil {
		return err
	}
	if ans.EmbedErr != nil {
		a.Logger.Warn("answer stored without embedding", zap.Error(ans.EmbedErr))
	}
	if asJSON {
		return printJSON(answerView(ans))
	}
	printAnswer(ans)
	return nil
}

func runSearch(ctx context.Context, a *app.App, query string, remote, asJSON bool) error {
	s := a.Settings()
	if remote {
		results, err := a.Assistant.SearchRemote(ctx, s, query)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(results)
		}
		for _, r := range results {
			printHit(r.Folder, r.Filename, float64(r.Score), false)
		}
		return nil
	}

	hits, err := a.Assistant.Search(ctx, s, query)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(hits)
	}
	for _, h := range hits {
		printHit(h.Folder, h.Filename, h.Similarity, h.Essential)
	}
	return nil
}

func parseID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid question id %q", raw)
	}
	return id, nil
}

func runHistoryList(a *app.App, asJSON bool) error {
	records, err := a.History.List(true)
	if err != nil {
		return err
	}
	if asJSON {
		views := make([]historyItem, len(records))
		for i, r := range records {
			views[i] = historyView(r)
		}
		return printJSON(views)
	}
	if len(records) == 0 {
		printInfo("No questions stored yet")
		return nil
	}
	for _, r := range records {
		printHistoryLine(r)
	}
	count, err := a.History.Count()
	if err != nil {
		return err
	}
	printInfo("%d of %d questions kept", count, a.History.MaxRecords())
	return nil
}

func runHistoryShow(a *app.App, raw string) error {
	id, err := parseID(raw)
	if err != nil {
		return err
	}
	rec, err := a.History.Get(id)
	if errors.Is(err, history.ErrNotFound) {
		return fmt.Errorf("question %d not found", id)
	}
	if err != nil {
		return err
	}
	printHistoryRecord(rec)
	return nil
}

func runHistoryDelete(ctx context.Context, a *app.App, raw string) error {
	id, err := parseID(raw)
	if err != nil {
		return err
	}
	found, err := a.Assistant.DeleteQuestion(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("question %d not found", id)
	}
	printSuccess("Deleted question %d", id)
	return nil
}

func runFoldersAdd(a *app.App, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", abs)
	}
	if _, err := a.Folders.Add(abs); err != nil {
		return err
	}
	selected, err := a.Folders.Selected()
	if err != nil {
		return err
	}
	if err := a.Folders.Select(append(selected, abs)); err != nil {
		return err
	}
	printSuccess("Added %s; run 'sage index' to build its store", abs)
	return nil
}

func runFoldersRemove(a *app.App, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := a.Folders.Remove(abs); err != nil {
		return err
	}
	printSuccess("Removed %s", abs)
	return nil
}

func runFoldersList(a *app.App) error {
	all, err := a.Folders.List()
	if err != nil {
		return err
	}
	if len(all) == 0 {
		printInfo("No folders registered")
		return nil
	}
	for _, f := range all {
		printFolder(f)
	}
	return nil
}

func runFoldersSelect(a *app.App, args []string) error {
	paths := make([]string, len(args))
	for i, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return err
		}
		paths[i] = abs
	}
	if err := a.Folders.Select(paths); err != nil {
		if errors.Is(err, folders.ErrNotFound) {
			return fmt.Errorf("%w; add it with 'sage folders add'", err)
		}
		return err
	}
	printSuccess("Selected %d folder(s)", len(paths))
	return nil
}

// parseUpdates splits key=value arguments.
func parseUpdates(args []string) (map[string]string, error) {
	updates := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("expected key=value, got %q (keys: %s)", arg, strings.Join(config.SettingKeys(), ", "))
		}
		updates[strings.TrimSpace(key)] = value
	}
	return updates, nil
}

func runSettingsSet(path string, args []string) error {
	updates, err := parseUpdates(args)
	if err != nil {
		return err
	}
	s, err := config.UpdateSettings(path, updates)
	if err != nil {
		return err
	}
	printSettings(s)
	return nil
}

func runAnalyze(ctx context.Context, a *app.App, base string) error {
	res, err := a.Assistant.AnalyzeChanges(ctx, a.Settings(), base)
	if err != nil {
		return err
	}
	printAnalysis(res)
	return nil
}

func runTranslate(ctx context.Context, a *app.App, path string) error {
	tr, err := a.Translator()
	if err != nil {
		return err
	}
	text, err := tr.File(ctx, path)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, text)
	return nil
}

func runGraphCited(ctx context.Context, a *app.App, folder, file string) error {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return err
	}
	qs, err := a.Assistant.Cited(ctx, abs, filepath.ToSlash(file))
	if err != nil {
		return err
	}
	if len(qs) == 0 {
		printInfo("No stored answer cites %s", file)
		return nil
	}
	for _, q := range qs {
		printCiting(q)
	}
	return nil
}
