package gitsync

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/example/flashdeck/internal/importer"
	"github.com/example/flashdeck/internal/storage"
)

// RunSync iterates over all card sources and reconciles each one into its
// deck. Errors on individual sources are logged and skipped so one broken
// remote does not stop the rest.
func RunSync(db *storage.DB, reposDir string, now time.Time) error {
	slog.Info("starting sync across all sources")
	sources, err := db.GetAllSources()
	if err != nil {
		return fmt.Errorf("getting sources: %w", err)
	}

	if len(sources) == 0 {
		slog.Info("no sources configured")
		return nil
	}

	if err := os.MkdirAll(reposDir, 0o755); err != nil {
		return fmt.Errorf("creating repos directory: %w", err)
	}

	for _, source := range sources {
		slog.Info("syncing source", "id", source.ID, "type", source.Type, "path", source.Path)

		dir := source.Path
		if source.Type == "git" {
			localPath, err := LocalPath(reposDir, source.Path)
			if err != nil {
				slog.Error("determining local path for git repo", "url", source.Path, "error", err)
				continue
			}
			if err := Sync(source.Path, localPath); err != nil {
				slog.Error("syncing git repo", "url", source.Path, "error", err)
				continue
			}
			dir = localPath
		}

		result, err := importer.Reconcile(db, source.DeckID, dir, now)
		if err != nil {
			slog.Error("reconciling source", "id", source.ID, "error", err)
			continue
		}
		if err := db.UpdateSourceLastScanned(source.ID, now); err != nil {
			slog.Warn("updating last scanned", "id", source.ID, "error", err)
		}

		slog.Info("reconciliation complete",
			"path", source.Path,
			"parsed", result.Parsed,
			"added", result.Added,
			"removed", result.Removed,
			"errors", len(result.Errors),
		)
	}

	slog.Info("sync complete")
	return nil
}
