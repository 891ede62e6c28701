package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dockeep/internal/autosave"
	"dockeep/internal/catalog"
	"dockeep/internal/config"
	"dockeep/internal/docstore"
	"dockeep/internal/encryption"
	"dockeep/internal/model"
	"dockeep/internal/recovery"
)

// PromptFunc asks the user for a save path when a document has none.
// suggested is a proposed file name. The second return value is false
// when the user declined, which surfaces as an ErrCancelled outcome
// and must not mutate any stored state.
type PromptFunc func(suggested string) (string, bool)

// App is the application layer between the CLI and the document
// service. It constructs all dependencies from config, exposes
// high-level operations that accept raw string paths, and manages
// resource lifecycle on Close.
type App struct {
	cfg       *config.Config
	service   *docstore.Service
	scheduler *autosave.Scheduler
	catalog   docstore.Catalog
	prompt    PromptFunc
	logFile   *os.File
}

// NewApp creates a fully wired App from the given config and runs the
// recovery startup cleanup. The caller must call Close when done.
func NewApp(ctx context.Context, cfg *config.Config, prompt PromptFunc) (*App, error) {
	logger, logFile, err := newLogger(cfg.LogDir)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	log := &slogAdapter{l: logger}

	encryptor, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	clock := docstore.RealClock{}
	snapshots, err := recovery.NewStoreFromConfig(ctx, cfg.Recovery, encryptor, clock)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating snapshot store: %w", err)
	}

	cat, err := catalog.NewCatalogFromConfig(cfg.Catalog)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating catalog: %w", err)
	}

	store := docstore.NewStore(clock, docstore.UUIDGenerator{})
	registry := docstore.NewRegistry()
	interval := time.Duration(cfg.AutoSave.IntervalSeconds) * time.Second
	retention := time.Duration(cfg.Recovery.RetentionDays) * 24 * time.Hour
	service := docstore.NewService(store, registry, snapshots, cat, log, clock, interval, retention)

	if err := service.Initialize(ctx); err != nil {
		cat.Close()
		logFile.Close()
		return nil, fmt.Errorf("initializing recovery: %w", err)
	}

	period := time.Duration(cfg.AutoSave.PeriodSeconds) * time.Second
	scheduler := autosave.NewScheduler(service, period, log)

	return &App{
		cfg:       cfg,
		service:   service,
		scheduler: scheduler,
		catalog:   cat,
		prompt:    prompt,
		logFile:   logFile,
	}, nil
}

// Service exposes the document service for tests and the CLI.
func (a *App) Service() *docstore.Service { return a.service }

// SaveDocument saves raw content to rawPath. An existing document
// file at that path is loaded first so its identity and version
// history carry forward; otherwise a new document is created with a
// title derived from the file name. With no path given the user is
// prompted; declining cancels the operation without touching any
// state.
func (a *App) SaveDocument(ctx context.Context, raw []byte, rawPath string) (*model.Document, error) {
	path, err := a.resolveSavePath(rawPath, "Untitled.json")
	if err != nil {
		return nil, err
	}

	if _, statErr := os.Stat(path); statErr == nil {
		doc, err := a.service.Open(ctx, path)
		if err != nil {
			return nil, err
		}
		return a.service.SaveContent(ctx, doc.ID, raw, path)
	}

	doc, err := a.service.Create(titleFromPath(path), raw)
	if err != nil {
		return nil, err
	}
	return a.service.Save(ctx, doc.ID, path)
}

// OpenDocument loads the document stored at rawPath.
func (a *App) OpenDocument(ctx context.Context, rawPath string) (*model.Document, error) {
	if rawPath == "" {
		path, ok := a.askPath("")
		if !ok {
			return nil, docstore.ErrCancelled
		}
		rawPath = path
	}
	return a.service.Open(ctx, rawPath)
}

// UpdateContent applies a manual edit to an open document.
func (a *App) UpdateContent(id string, raw []byte) error {
	return a.service.UpdateContent(id, raw)
}

// EditDocument loads the document at rawPath, replaces its content
// with raw and runs the auto-save path once, so the unsaved edit is
// covered by a recovery snapshot. The primary save file is not
// touched: the edit stays uncommitted until the next manual save.
func (a *App) EditDocument(ctx context.Context, rawPath string, raw []byte) (*model.Document, error) {
	doc, err := a.OpenDocument(ctx, rawPath)
	if err != nil {
		return nil, err
	}
	if err := a.service.UpdateContent(doc.ID, raw); err != nil {
		return nil, err
	}
	if err := a.service.AutoSave(ctx, doc.ID); err != nil {
		return nil, err
	}
	return a.service.Document(doc.ID)
}

// SaveOpenDocument persists an open document's current content,
// prompting for a location if it has none.
func (a *App) SaveOpenDocument(ctx context.Context, id string, rawPath string) (*model.Document, error) {
	if rawPath == "" {
		doc, err := a.service.Document(id)
		if err != nil {
			return nil, err
		}
		if doc.FilePath == "" {
			path, ok := a.askPath(doc.Title + ".json")
			if !ok {
				return nil, docstore.ErrCancelled
			}
			rawPath = path
		}
	}
	return a.service.Save(ctx, id, rawPath)
}

// Versions lists the version history of an open document.
func (a *App) Versions(id string) ([]model.DocumentVersion, error) {
	return a.service.Versions(id)
}

// RestoreVersion re-adds an older version's content as a manual save.
func (a *App) RestoreVersion(ctx context.Context, id, versionID string) (*model.Document, error) {
	return a.service.RestoreVersion(ctx, id, versionID)
}

// Recover restores a document from its crash-recovery snapshot.
func (a *App) Recover(ctx context.Context, id string) (*model.Document, error) {
	return a.service.Recover(ctx, id)
}

// ListRecoverable returns all documents with recovery snapshots.
func (a *App) ListRecoverable(ctx context.Context) ([]*model.Document, error) {
	return a.service.ListRecoverable(ctx)
}

// ListSnapshots returns metadata for all stored recovery snapshots
// without decoding them.
func (a *App) ListSnapshots(ctx context.Context) ([]docstore.SnapshotInfo, error) {
	return a.service.ListSnapshots(ctx)
}

// ListDocuments returns the catalog entries of all known documents.
func (a *App) ListDocuments(ctx context.Context) ([]*model.CatalogEntry, error) {
	return a.service.ListDocuments(ctx)
}

// DeleteDocument removes a document, its recovery snapshot and its
// catalog entry.
func (a *App) DeleteDocument(ctx context.Context, id string, rawPath string) error {
	return a.service.Delete(ctx, id, rawPath)
}

// StartAutoSave launches the background auto-save scheduler.
func (a *App) StartAutoSave(ctx context.Context) {
	a.scheduler.Start(ctx)
}

// Close stops the scheduler and releases all resources.
func (a *App) Close() error {
	a.scheduler.Stop()

	var firstErr error
	if err := a.catalog.Close(); err != nil {
		firstErr = fmt.Errorf("closing catalog: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

// resolveSavePath returns rawPath, or asks the user when it is empty.
func (a *App) resolveSavePath(rawPath, suggested string) (string, error) {
	if rawPath != "" {
		return rawPath, nil
	}
	path, ok := a.askPath(suggested)
	if !ok {
		return "", docstore.ErrCancelled
	}
	return path, nil
}

func (a *App) askPath(suggested string) (string, bool) {
	if a.prompt == nil {
		return "", false
	}
	return a.prompt(suggested)
}

// titleFromPath derives a document title from its file name.
func titleFromPath(path string) string {
	base := filepath.Base(path)
	title := strings.TrimSuffix(base, filepath.Ext(base))
	if title == "" || title == "." {
		return "Untitled"
	}
	return title
}
