package docstore_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dockeep/internal/docstore"
	"dockeep/internal/recovery"
	"dockeep/internal/testutil"
)

type serviceFixture struct {
	service   *docstore.Service
	clock     *testutil.StubClock
	snapshots *recovery.MemoryStore
	registry  *docstore.Registry
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	clock := testutil.FixedClock()
	return newServiceFixtureWith(t, clock, recovery.NewMemoryStore(clock))
}

// newServiceFixtureWith builds a service around existing stores, so a
// test can simulate a second process seeing the first one's snapshots.
func newServiceFixtureWith(t *testing.T, clock *testutil.StubClock, snapshots *recovery.MemoryStore) *serviceFixture {
	t.Helper()
	registry := docstore.NewRegistry()
	service := docstore.NewService(
		docstore.NewStore(clock, testutil.NewStubIDGenerator()),
		registry,
		snapshots,
		testutil.NewTestCatalog(t),
		docstore.NewNopLogger(),
		clock,
		0, 0,
	)
	return &serviceFixture{service: service, clock: clock, snapshots: snapshots, registry: registry}
}

func TestService_CreateAndSave(t *testing.T) {
	ctx := context.Background()

	t.Run("save writes the file and clears dirty", func(t *testing.T) {
		f := newServiceFixture(t)
		doc, err := f.service.Create("Notes", nil)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		path := filepath.Join(t.TempDir(), "notes.json")
		saved, err := f.service.SaveContent(ctx, doc.ID, testutil.Content("hello"), path)
		if err != nil {
			t.Fatalf("SaveContent() error = %v", err)
		}

		if saved.IsDirty {
			t.Error("saved document should not be dirty")
		}
		if saved.FilePath != path {
			t.Errorf("file path = %q, want %q", saved.FilePath, path)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("save file missing: %v", err)
		}
	})

	t.Run("save without a location fails before changing state", func(t *testing.T) {
		f := newServiceFixture(t)
		doc, _ := f.service.Create("Notes", nil)

		_, err := f.service.Save(ctx, doc.ID, "")
		if err == nil {
			t.Fatal("Save() succeeded without a location")
		}
	})

	t.Run("create rejects malformed initial content", func(t *testing.T) {
		f := newServiceFixture(t)
		_, err := f.service.Create("Notes", []byte("{broken"))
		if !errors.Is(err, docstore.ErrInvalidFormat) {
			t.Errorf("Create() error = %v, want ErrInvalidFormat", err)
		}
	})

	t.Run("save of an unopened document fails with not found", func(t *testing.T) {
		f := newServiceFixture(t)
		_, err := f.service.Save(ctx, "unknown", "/tmp/x.json")
		if !errors.Is(err, docstore.ErrNotFound) {
			t.Errorf("Save() error = %v, want ErrNotFound", err)
		}
	})
}

func TestService_SaveFailure(t *testing.T) {
	ctx := context.Background()

	// A regular file where the save path needs a directory makes the
	// durable write fail after validation passes.
	blockedPath := func(t *testing.T) string {
		t.Helper()
		blocker := filepath.Join(t.TempDir(), "blocker")
		if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		return filepath.Join(blocker, "doc.json")
	}

	t.Run("failed write leaves the document dirty and unversioned", func(t *testing.T) {
		f := newServiceFixture(t)
		doc, _ := f.service.Create("Notes", nil)
		if err := f.service.UpdateContent(doc.ID, testutil.Content("draft")); err != nil {
			t.Fatal(err)
		}

		if _, err := f.service.Save(ctx, doc.ID, blockedPath(t)); err == nil {
			t.Fatal("Save() to an unwritable path should fail")
		}

		after, err := f.service.Document(doc.ID)
		if err != nil {
			t.Fatalf("Document() error = %v", err)
		}
		if !after.IsDirty {
			t.Error("document reported clean after a failed save")
		}
		if after.FilePath != "" {
			t.Errorf("file path = %q, want empty after a failed save", after.FilePath)
		}
		if len(after.Versions) != 1 {
			t.Errorf("versions = %d, want 1 after a failed save", len(after.Versions))
		}
		if after.LastSaveTime != nil {
			t.Error("last save time set after a failed save")
		}
	})

	t.Run("auto-save still protects content after a failed save", func(t *testing.T) {
		f := newServiceFixture(t)
		doc, _ := f.service.Create("Notes", nil)
		_ = f.service.UpdateContent(doc.ID, testutil.Content("draft"))

		if _, err := f.service.Save(ctx, doc.ID, blockedPath(t)); err == nil {
			t.Fatal("Save() to an unwritable path should fail")
		}
		if err := f.service.AutoSave(ctx, doc.ID); err != nil {
			t.Fatalf("AutoSave() error = %v", err)
		}

		snap, err := f.snapshots.Load(ctx, doc.ID)
		if err != nil {
			t.Fatalf("no recovery snapshot for unsaved content: %v", err)
		}
		if !docstore.ContentEqual(snap.Content, testutil.Content("draft")) {
			t.Errorf("snapshot content = %s, want the unsaved draft", snap.Content)
		}
	})

	t.Run("failed content save keeps the prior state", func(t *testing.T) {
		f := newServiceFixture(t)
		doc, _ := f.service.Create("Notes", nil)
		path := filepath.Join(t.TempDir(), "notes.json")
		if _, err := f.service.SaveContent(ctx, doc.ID, testutil.Content("committed"), path); err != nil {
			t.Fatalf("SaveContent() error = %v", err)
		}

		if _, err := f.service.SaveContent(ctx, doc.ID, testutil.Content("lost"), blockedPath(t)); err == nil {
			t.Fatal("SaveContent() to an unwritable path should fail")
		}

		after, _ := f.service.Document(doc.ID)
		if after.FilePath != path {
			t.Errorf("file path = %q, want the prior location %q", after.FilePath, path)
		}
		if !docstore.ContentEqual(after.Content, testutil.Content("committed")) {
			t.Errorf("content = %s, want the prior state", after.Content)
		}
		if len(after.Versions) != 2 {
			t.Errorf("versions = %d, want 2", len(after.Versions))
		}
	})
}

func TestService_OpenRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	doc, _ := f.service.Create("Round Trip", nil)
	path := filepath.Join(t.TempDir(), "doc.json")
	if _, err := f.service.SaveContent(ctx, doc.ID, testutil.Content("v1"), path); err != nil {
		t.Fatalf("SaveContent() error = %v", err)
	}
	if _, err := f.service.SaveContent(ctx, doc.ID, testutil.Content("v2"), ""); err != nil {
		t.Fatalf("SaveContent() error = %v", err)
	}

	other := newServiceFixtureWith(t, f.clock, f.snapshots)
	loaded, err := other.service.Open(ctx, path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if loaded.ID != doc.ID {
		t.Errorf("loaded id = %q, want %q", loaded.ID, doc.ID)
	}
	if !docstore.ContentEqual(loaded.Content, testutil.Content("v2")) {
		t.Errorf("loaded content = %s, want v2", loaded.Content)
	}
	// Baseline plus v1 plus v2.
	if len(loaded.Versions) != 3 {
		t.Errorf("loaded versions = %d, want 3", len(loaded.Versions))
	}
}

func TestService_Open(t *testing.T) {
	ctx := context.Background()

	t.Run("missing file fails with not found", func(t *testing.T) {
		f := newServiceFixture(t)
		_, err := f.service.Open(ctx, filepath.Join(t.TempDir(), "absent.json"))
		if !errors.Is(err, docstore.ErrNotFound) {
			t.Errorf("Open() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("corrupt file fails with invalid format", func(t *testing.T) {
		f := newServiceFixture(t)
		path := filepath.Join(t.TempDir(), "corrupt.json")
		if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := f.service.Open(ctx, path)
		if !errors.Is(err, docstore.ErrInvalidFormat) {
			t.Errorf("Open() error = %v, want ErrInvalidFormat", err)
		}
	})

	t.Run("file without version history fails with invalid format", func(t *testing.T) {
		f := newServiceFixture(t)
		path := filepath.Join(t.TempDir(), "empty.json")
		if err := os.WriteFile(path, []byte(`{"id":"x","title":"x","content":{"content":""}}`), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := f.service.Open(ctx, path)
		if !errors.Is(err, docstore.ErrInvalidFormat) {
			t.Errorf("Open() error = %v, want ErrInvalidFormat", err)
		}
	})
}

func TestService_AutoSave(t *testing.T) {
	ctx := context.Background()

	t.Run("clean document is skipped", func(t *testing.T) {
		f := newServiceFixture(t)
		doc, _ := f.service.Create("Notes", nil)

		if err := f.service.AutoSave(ctx, doc.ID); err != nil {
			t.Fatalf("AutoSave() error = %v", err)
		}
		if _, err := f.snapshots.Load(ctx, doc.ID); !errors.Is(err, docstore.ErrNotFound) {
			t.Error("auto-save of a clean document wrote a snapshot")
		}
	})

	t.Run("dirty document gets a version and a snapshot", func(t *testing.T) {
		f := newServiceFixture(t)
		doc, _ := f.service.Create("Notes", nil)
		if err := f.service.UpdateContent(doc.ID, testutil.Content("draft")); err != nil {
			t.Fatalf("UpdateContent() error = %v", err)
		}

		if err := f.service.AutoSave(ctx, doc.ID); err != nil {
			t.Fatalf("AutoSave() error = %v", err)
		}

		after, _ := f.service.Document(doc.ID)
		if !after.IsDirty {
			t.Error("auto-save must not clear the dirty flag")
		}
		if len(after.Versions) != 2 {
			t.Fatalf("versions = %d, want 2", len(after.Versions))
		}
		if !after.Versions[1].IsAutoSave {
			t.Error("recorded version should be marked auto-save")
		}

		snap, err := f.snapshots.Load(ctx, doc.ID)
		if err != nil {
			t.Fatalf("snapshot missing after auto-save: %v", err)
		}
		if !docstore.ContentEqual(snap.Content, testutil.Content("draft")) {
			t.Errorf("snapshot content = %s, want the draft", snap.Content)
		}
	})

	t.Run("interval gates successive auto-saves", func(t *testing.T) {
		f := newServiceFixture(t)
		doc, _ := f.service.Create("Notes", nil)

		_ = f.service.UpdateContent(doc.ID, testutil.Content("one"))
		_ = f.service.AutoSave(ctx, doc.ID)

		_ = f.service.UpdateContent(doc.ID, testutil.Content("two"))
		f.clock.Advance(docstore.AutoSaveInterval - time.Second)
		_ = f.service.AutoSave(ctx, doc.ID)

		after, _ := f.service.Document(doc.ID)
		if len(after.Versions) != 2 {
			t.Fatalf("versions = %d, want 2 while inside the interval", len(after.Versions))
		}

		f.clock.Advance(time.Second)
		_ = f.service.AutoSave(ctx, doc.ID)

		after, _ = f.service.Document(doc.ID)
		if len(after.Versions) != 3 {
			t.Errorf("versions = %d, want 3 once the interval has passed", len(after.Versions))
		}
	})

	t.Run("auto save all walks every open document", func(t *testing.T) {
		f := newServiceFixture(t)
		a, _ := f.service.Create("A", nil)
		b, _ := f.service.Create("B", nil)
		_ = f.service.UpdateContent(a.ID, testutil.Content("a"))
		_ = f.service.UpdateContent(b.ID, testutil.Content("b"))

		f.service.AutoSaveAll(ctx)

		for _, id := range []string{a.ID, b.ID} {
			if _, err := f.snapshots.Load(ctx, id); err != nil {
				t.Errorf("snapshot for %s missing: %v", id, err)
			}
		}
	})
}

func TestService_Recover(t *testing.T) {
	ctx := context.Background()

	t.Run("recovered document is dirty and keeps its snapshot", func(t *testing.T) {
		f := newServiceFixture(t)
		doc, _ := f.service.Create("Crashy", nil)
		_ = f.service.UpdateContent(doc.ID, testutil.Content("unsaved"))
		_ = f.service.AutoSave(ctx, doc.ID)

		// A fresh registry stands in for the process after a crash.
		other := newServiceFixtureWith(t, f.clock, f.snapshots)
		recovered, err := other.service.Recover(ctx, doc.ID)
		if err != nil {
			t.Fatalf("Recover() error = %v", err)
		}

		if !recovered.IsDirty {
			t.Error("recovered document must be dirty")
		}
		if !docstore.ContentEqual(recovered.Content, testutil.Content("unsaved")) {
			t.Errorf("recovered content = %s, want the unsaved draft", recovered.Content)
		}
		if _, err := f.snapshots.Load(ctx, doc.ID); err != nil {
			t.Errorf("snapshot should survive recovery until a manual save: %v", err)
		}
	})

	t.Run("manual save after recovery drops the snapshot", func(t *testing.T) {
		f := newServiceFixture(t)
		doc, _ := f.service.Create("Crashy", nil)
		_ = f.service.UpdateContent(doc.ID, testutil.Content("unsaved"))
		_ = f.service.AutoSave(ctx, doc.ID)

		other := newServiceFixtureWith(t, f.clock, f.snapshots)
		recovered, err := other.service.Recover(ctx, doc.ID)
		if err != nil {
			t.Fatalf("Recover() error = %v", err)
		}

		path := filepath.Join(t.TempDir(), "crashy.json")
		if _, err := other.service.Save(ctx, recovered.ID, path); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if _, err := f.snapshots.Load(ctx, doc.ID); !errors.Is(err, docstore.ErrNotFound) {
			t.Error("snapshot should be removed once the recovery is committed")
		}
	})

	t.Run("loading the save file supersedes the snapshot", func(t *testing.T) {
		f := newServiceFixture(t)
		doc, _ := f.service.Create("Notes", nil)
		path := filepath.Join(t.TempDir(), "notes.json")
		_, _ = f.service.SaveContent(ctx, doc.ID, testutil.Content("saved"), path)
		_ = f.service.UpdateContent(doc.ID, testutil.Content("newer"))
		_ = f.service.AutoSave(ctx, doc.ID)

		other := newServiceFixtureWith(t, f.clock, f.snapshots)
		if _, err := other.service.Open(ctx, path); err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if _, err := f.snapshots.Load(ctx, doc.ID); !errors.Is(err, docstore.ErrNotFound) {
			t.Error("opening the save file should drop the recovery snapshot")
		}
	})

	t.Run("no snapshot fails with not found", func(t *testing.T) {
		f := newServiceFixture(t)
		_, err := f.service.Recover(ctx, "ghost")
		if !errors.Is(err, docstore.ErrNotFound) {
			t.Errorf("Recover() error = %v, want ErrNotFound", err)
		}
	})
}

func TestService_Initialize(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	old, _ := f.service.Create("Old", nil)
	_ = f.service.UpdateContent(old.ID, testutil.Content("old"))
	_ = f.service.AutoSave(ctx, old.ID)

	f.clock.Advance(docstore.RecoveryRetention + time.Hour)

	fresh, _ := f.service.Create("Fresh", nil)
	_ = f.service.UpdateContent(fresh.ID, testutil.Content("fresh"))
	_ = f.service.AutoSave(ctx, fresh.ID)

	if err := f.service.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	if _, err := f.snapshots.Load(ctx, old.ID); !errors.Is(err, docstore.ErrNotFound) {
		t.Error("expired snapshot survived startup cleanup")
	}
	if _, err := f.snapshots.Load(ctx, fresh.ID); err != nil {
		t.Errorf("recent snapshot removed by startup cleanup: %v", err)
	}
}

func TestService_ListRecoverable(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	for _, title := range []string{"A", "B"} {
		doc, _ := f.service.Create(title, nil)
		_ = f.service.UpdateContent(doc.ID, testutil.Content(title))
		_ = f.service.AutoSave(ctx, doc.ID)
	}

	docs, err := f.service.ListRecoverable(ctx)
	if err != nil {
		t.Fatalf("ListRecoverable() error = %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("recoverable documents = %d, want 2", len(docs))
	}

	infos, err := f.service.ListSnapshots(ctx)
	if err != nil {
		t.Fatalf("ListSnapshots() error = %v", err)
	}
	if len(infos) != 2 {
		t.Errorf("snapshots = %d, want 2", len(infos))
	}
	for _, info := range infos {
		if !info.ModifiedAt.Equal(f.clock.Now()) {
			t.Errorf("snapshot %s modified at %v, want %v", info.DocumentID, info.ModifiedAt, f.clock.Now())
		}
	}
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("removes file, snapshot, catalog entry and handle", func(t *testing.T) {
		f := newServiceFixture(t)
		doc, _ := f.service.Create("Doomed", nil)
		path := filepath.Join(t.TempDir(), "doomed.json")
		_, _ = f.service.SaveContent(ctx, doc.ID, testutil.Content("x"), path)
		_ = f.service.UpdateContent(doc.ID, testutil.Content("y"))
		_ = f.service.AutoSave(ctx, doc.ID)

		if err := f.service.Delete(ctx, doc.ID, ""); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}

		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Error("save file still exists")
		}
		if _, err := f.snapshots.Load(ctx, doc.ID); !errors.Is(err, docstore.ErrNotFound) {
			t.Error("recovery snapshot still exists")
		}
		if _, err := f.service.Document(doc.ID); !errors.Is(err, docstore.ErrNotFound) {
			t.Error("document is still open")
		}
		entries, err := f.service.ListDocuments(ctx)
		if err != nil {
			t.Fatalf("ListDocuments() error = %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("catalog entries = %d, want 0", len(entries))
		}
	})

	t.Run("explicit missing path fails with not found", func(t *testing.T) {
		f := newServiceFixture(t)
		err := f.service.Delete(ctx, "whatever", filepath.Join(t.TempDir(), "gone.json"))
		if !errors.Is(err, docstore.ErrNotFound) {
			t.Errorf("Delete() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("unknown id without a path is a no-op", func(t *testing.T) {
		f := newServiceFixture(t)
		if err := f.service.Delete(ctx, "unknown", ""); err != nil {
			t.Errorf("Delete() error = %v", err)
		}
	})
}

func TestService_RestoreVersion(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	doc, _ := f.service.Create("Notes", nil)
	path := filepath.Join(t.TempDir(), "notes.json")
	_, _ = f.service.SaveContent(ctx, doc.ID, testutil.Content("first"), path)
	saved, _ := f.service.SaveContent(ctx, doc.ID, testutil.Content("second"), "")
	firstVersion := saved.Versions[1]

	t.Run("restores older content as the current state", func(t *testing.T) {
		restored, err := f.service.RestoreVersion(ctx, doc.ID, firstVersion.ID)
		if err != nil {
			t.Fatalf("RestoreVersion() error = %v", err)
		}
		if !docstore.ContentEqual(restored.Content, testutil.Content("first")) {
			t.Errorf("content = %s, want the restored version", restored.Content)
		}
		if restored.IsDirty {
			t.Error("restore counts as a manual save")
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("reading save file: %v", err)
		}
		onDisk, err := docstore.DecodeDocument(data)
		if err != nil {
			t.Fatalf("decoding save file: %v", err)
		}
		if !docstore.ContentEqual(onDisk.Content, testutil.Content("first")) {
			t.Error("restored state was not persisted")
		}
	})

	t.Run("unknown version fails with not found", func(t *testing.T) {
		_, err := f.service.RestoreVersion(ctx, doc.ID, "nope")
		if !errors.Is(err, docstore.ErrNotFound) {
			t.Errorf("RestoreVersion() error = %v, want ErrNotFound", err)
		}
	})
}

func TestService_Versions(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	doc, _ := f.service.Create("Notes", testutil.Content("v1"))
	_, _ = f.service.SaveContent(ctx, doc.ID, testutil.Content("v2"), filepath.Join(t.TempDir(), "n.json"))

	versions, err := f.service.Versions(doc.ID)
	if err != nil {
		t.Fatalf("Versions() error = %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("versions = %d, want 3", len(versions))
	}
	if !docstore.ContentEqual(versions[0].Content, docstore.EmptyContent()) {
		t.Error("first listed version should be the baseline")
	}

	v, err := f.service.Version(doc.ID, versions[2].ID)
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if !docstore.ContentEqual(v.Content, testutil.Content("v2")) {
		t.Errorf("version content = %s, want v2", v.Content)
	}
}
