package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/hazyhaar/echoflow/dbopen"
	_ "modernc.org/sqlite"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(dbopen.OpenMemory(t, dbopen.WithSchema(Schema)))
}

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	id, err := store.Create(ctx, "/data/in", "/data/out")
	if err != nil {
		t.Fatal(err)
	}

	job, err := store.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != StatusPending {
		t.Errorf("status = %q, want pending", job.Status)
	}
	if job.Source != "/data/in" || job.OutputDir != "/data/out" {
		t.Errorf("job = %+v", job)
	}

	if err := store.Start(ctx, id, 12); err != nil {
		t.Fatal(err)
	}
	if err := store.Progress(ctx, id, 5, 4, 1, 2); err != nil {
		t.Fatal(err)
	}

	job, err = store.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != StatusRunning || job.Total != 12 {
		t.Errorf("job = %+v", job)
	}
	if job.Completed != 5 || job.Succeeded != 4 || job.Failed != 1 || job.FallbackUsed != 2 {
		t.Errorf("counters = %+v", job)
	}

	if err := store.Finish(ctx, id, StatusPartiallyFailed, ""); err != nil {
		t.Fatal(err)
	}
	job, err = store.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != StatusPartiallyFailed {
		t.Errorf("status = %q", job.Status)
	}
	if job.UpdatedAt.Before(job.CreatedAt) {
		t.Error("updated_at went backwards")
	}
}

func TestStoreGet_Unknown(t *testing.T) {
	store := testStore(t)
	if _, err := store.Get(context.Background(), "job_missing"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("err = %v, want ErrJobNotFound", err)
	}
}

func TestStoreRecent(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	for i := 0; i < 3; i++ {
		if _, err := store.Create(ctx, "/in", "/out"); err != nil {
			t.Fatal(err)
		}
	}

	jobs, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2", len(jobs))
	}
	for _, j := range jobs {
		if j.ID == "" {
			t.Errorf("job without ID: %+v", j)
		}
	}
}
