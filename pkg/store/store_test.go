package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"docstore/pkg/document"
	"docstore/pkg/metrics"
	"docstore/pkg/revision"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("Open() = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenCloseReady(t *testing.T) {
	s := openTestStore(t)
	if !s.Ready() {
		t.Error("expected Ready() true after Open")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if s.Ready() {
		t.Error("expected Ready() false after Close")
	}
}

func TestFindAndUpdateCreatesNewDocument(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	op := document.NewUpdateOp("1:/a")
	op.IsNew = true
	op.SetScalar(document.KeyPath, "/a")

	before, err := s.FindAndUpdate(ctx, op)
	if err != nil {
		t.Fatalf("FindAndUpdate() = %v", err)
	}
	if before.Path() != "" {
		t.Errorf("before.Path() = %q, want empty for a brand new document", before.Path())
	}

	after, found, err := s.Find(ctx, "1:/a")
	if err != nil || !found {
		t.Fatalf("Find() = %v, %v, %v", after, found, err)
	}
	if after.Path() != "/a" {
		t.Errorf("after.Path() = %q, want /a", after.Path())
	}
}

func TestFindAndUpdateRejectsMissingDocumentWithoutIsNew(t *testing.T) {
	s := openTestStore(t)
	op := document.NewUpdateOp("1:/missing")
	op.SetScalar(document.KeyPath, "/missing")

	if _, err := s.FindAndUpdate(context.Background(), op); err == nil {
		t.Error("expected an error updating a nonexistent document without IsNew set")
	}
}

func TestFindAndUpdateAppliesEqualsPrecondition(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	create := document.NewUpdateOp("1:/a")
	create.IsNew = true
	create.SetScalar(document.KeyChildren, false)
	if _, err := s.FindAndUpdate(ctx, create); err != nil {
		t.Fatalf("create FindAndUpdate() = %v", err)
	}

	okUpdate := document.NewUpdateOp("1:/a").EqualsScalar(document.KeyChildren, false).SetScalar(document.KeyChildren, true)
	if _, err := s.FindAndUpdate(ctx, okUpdate); err != nil {
		t.Fatalf("precondition-satisfying update = %v, want nil", err)
	}

	failUpdate := document.NewUpdateOp("1:/a").EqualsScalar(document.KeyChildren, false).SetScalar(document.KeyChildren, true)
	if _, err := s.FindAndUpdate(ctx, failUpdate); err == nil {
		t.Error("expected a stale Equals precondition to fail")
	}
}

func TestFindAndUpdateDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	create := document.NewUpdateOp("1:/a")
	create.IsNew = true
	create.SetScalar(document.KeyPath, "/a")
	if _, err := s.FindAndUpdate(ctx, create); err != nil {
		t.Fatalf("create FindAndUpdate() = %v", err)
	}

	del := document.NewUpdateOp("1:/a")
	del.IsDelete = true
	if _, err := s.FindAndUpdate(ctx, del); err != nil {
		t.Fatalf("delete FindAndUpdate() = %v", err)
	}

	_, found, err := s.Find(ctx, "1:/a")
	if err != nil {
		t.Fatalf("Find() after delete = %v", err)
	}
	if found {
		t.Error("expected document to be gone after a delete update")
	}
}

func TestFindUsesCacheBeforeStore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	create := document.NewUpdateOp("1:/a")
	create.IsNew = true
	create.SetScalar(document.KeyPath, "/a")
	if _, err := s.FindAndUpdate(ctx, create); err != nil {
		t.Fatalf("create FindAndUpdate() = %v", err)
	}

	if _, ok := s.GetIfCached("1:/a"); !ok {
		t.Error("expected the just-written document to be cached")
	}
	s.InvalidateCache("1:/a")
	if _, ok := s.GetIfCached("1:/a"); ok {
		t.Error("expected InvalidateCache to drop the cache entry")
	}

	doc, found, err := s.Find(ctx, "1:/a")
	if err != nil || !found || doc.Path() != "/a" {
		t.Fatalf("Find() after invalidation = %v, %v, %v", doc, found, err)
	}
}

func TestCreatePreviousAndFind(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	prev := document.New(document.PreviousID(1, "/a", revision.New(100, 0, 1), 0))
	prev.SetScalar(document.KeyPath, "/a")
	prev.Seal()

	if err := s.CreatePrevious(ctx, prev); err != nil {
		t.Fatalf("CreatePrevious() = %v", err)
	}

	got, found, err := s.Find(ctx, prev.ID())
	if err != nil || !found {
		t.Fatalf("Find() = %v, %v, %v", got, found, err)
	}
}

func TestIterateVisitsEveryDocument(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"1:/a", "1:/b", "1:/c"} {
		op := document.NewUpdateOp(id)
		op.IsNew = true
		op.SetScalar(document.KeyPath, id)
		if _, err := s.FindAndUpdate(ctx, op); err != nil {
			t.Fatalf("FindAndUpdate(%q) = %v", id, err)
		}
	}

	seen := map[string]bool{}
	err := s.Iterate(ctx, func(d *document.Document) error {
		seen[d.ID()] = true
		return nil
	})
	if err != nil {
		t.Fatalf("Iterate() = %v", err)
	}
	for _, id := range []string{"1:/a", "1:/b", "1:/c"} {
		if !seen[id] {
			t.Errorf("Iterate() never visited %q", id)
		}
	}
}

func TestIterateStopsOnCallbackError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"1:/a", "1:/b"} {
		op := document.NewUpdateOp(id)
		op.IsNew = true
		if _, err := s.FindAndUpdate(ctx, op); err != nil {
			t.Fatalf("FindAndUpdate(%q) = %v", id, err)
		}
	}

	wantErr := context.Canceled
	err := s.Iterate(ctx, func(d *document.Document) error { return wantErr })
	if err != wantErr {
		t.Fatalf("Iterate() = %v, want %v propagated from the callback", err, wantErr)
	}
}

func TestFindReportsCacheMetrics(t *testing.T) {
	s := openTestStore(t)
	s.Metrics = metrics.New()
	ctx := context.Background()

	create := document.NewUpdateOp("1:/a")
	create.IsNew = true
	create.SetScalar(document.KeyPath, "/a")
	if _, err := s.FindAndUpdate(ctx, create); err != nil {
		t.Fatalf("create FindAndUpdate() = %v", err)
	}

	if _, found, err := s.Find(ctx, "1:/a"); err != nil || !found {
		t.Fatalf("Find() (cache hit) = %v, %v, %v", found, err, err)
	}
	if got := testutil.ToFloat64(s.Metrics.StoreCacheHits); got != 1 {
		t.Errorf("StoreCacheHits = %v, want 1", got)
	}

	s.InvalidateCache("1:/a")
	if _, found, err := s.Find(ctx, "1:/a"); err != nil || !found {
		t.Fatalf("Find() (cache miss) = %v, %v, %v", found, err, err)
	}
	if got := testutil.ToFloat64(s.Metrics.StoreCacheMisses); got != 1 {
		t.Errorf("StoreCacheMisses = %v, want 1", got)
	}
}

func TestPrevNoPropCacheAccessible(t *testing.T) {
	s := openTestStore(t)
	if s.PrevNoPropCache() == nil {
		t.Error("expected a non-nil PrevNoPropCache")
	}
}
