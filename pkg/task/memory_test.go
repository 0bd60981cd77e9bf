package task

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func testTask(id, app string) *Task {
	return &Task{
		ID:      id,
		App:     app,
		Author:  "test_author",
		Project: "test_project",
		Images:  []Image{{Image: "example", Tag: "latest"}},
	}
}

func TestInMemoryTaskStatus(t *testing.T) {
	store := NewInMemoryStore(time.Hour)
	ctx := context.Background()

	if err := store.SetCurrentTask(ctx, testTask("id-1", "test_app"), StatusInProgress); err != nil {
		t.Fatalf("SetCurrentTask() error: %v", err)
	}

	status, err := store.GetTaskStatus(ctx, "id-1")
	if err != nil {
		t.Fatalf("GetTaskStatus() error: %v", err)
	}
	if status != StatusInProgress {
		t.Errorf("status = %q, want %q", status, StatusInProgress)
	}
}

func TestInMemoryTaskNotFound(t *testing.T) {
	store := NewInMemoryStore(time.Hour)

	status, err := store.GetTaskStatus(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("GetTaskStatus() error: %v", err)
	}
	if status != StatusTaskNotFound {
		t.Errorf("status = %q, want %q", status, StatusTaskNotFound)
	}
}

func TestInMemoryUpdateTask(t *testing.T) {
	store := NewInMemoryStore(time.Hour)
	ctx := context.Background()

	if err := store.SetCurrentTask(ctx, testTask("id-1", "test_app"), StatusInProgress); err != nil {
		t.Fatalf("SetCurrentTask() error: %v", err)
	}
	if err := store.UpdateTask(ctx, "id-1", StatusDeployed); err != nil {
		t.Fatalf("UpdateTask() error: %v", err)
	}

	status, _ := store.GetTaskStatus(ctx, "id-1")
	if status != StatusDeployed {
		t.Errorf("status = %q, want %q", status, StatusDeployed)
	}

	// Updated must be stamped no earlier than Created.
	tasks, err := store.GetState(ctx, HistoryFilter{From: 0})
	if err != nil {
		t.Fatalf("GetState() error: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("GetState() returned %d tasks, want 1", len(tasks))
	}
	if tasks[0].Updated < tasks[0].Created {
		t.Errorf("Updated %f < Created %f", tasks[0].Updated, tasks[0].Created)
	}
}

func TestInMemoryUpdateMissingTaskIsNoop(t *testing.T) {
	store := NewInMemoryStore(time.Hour)

	if err := store.UpdateTask(context.Background(), "missing", StatusDeployed); err != nil {
		t.Fatalf("UpdateTask() on missing id: %v", err)
	}
}

func TestInMemoryExpiry(t *testing.T) {
	store := NewInMemoryStore(time.Second)
	ctx := context.Background()

	now := time.Now()
	store.now = func() time.Time { return now }

	if err := store.SetCurrentTask(ctx, testTask("id-1", "test_app"), StatusInProgress); err != nil {
		t.Fatalf("SetCurrentTask() error: %v", err)
	}

	// Still retained just inside the TTL.
	store.now = func() time.Time { return now.Add(900 * time.Millisecond) }
	if status, _ := store.GetTaskStatus(ctx, "id-1"); status != StatusInProgress {
		t.Errorf("status before expiry = %q, want %q", status, StatusInProgress)
	}

	// Gone after the TTL everywhere: status, history, app list.
	store.now = func() time.Time { return now.Add(2 * time.Second) }
	if status, _ := store.GetTaskStatus(ctx, "id-1"); status != StatusTaskNotFound {
		t.Errorf("status after expiry = %q, want %q", status, StatusTaskNotFound)
	}
	tasks, _ := store.GetState(ctx, HistoryFilter{From: 0})
	if len(tasks) != 0 {
		t.Errorf("GetState() after expiry returned %d tasks, want 0", len(tasks))
	}
	apps, _ := store.GetAppList(ctx)
	if len(apps) != 0 {
		t.Errorf("GetAppList() after expiry returned %v, want empty", apps)
	}
}

func TestInMemoryCapacityEviction(t *testing.T) {
	store := NewInMemoryStore(time.Hour)
	ctx := context.Background()

	base := time.Now()
	for i := 0; i < defaultCapacity+10; i++ {
		store.now = func() time.Time { return base.Add(time.Duration(i) * time.Second) }
		if err := store.SetCurrentTask(ctx, testTask(fmt.Sprintf("id-%d", i), "test_app"), StatusInProgress); err != nil {
			t.Fatalf("SetCurrentTask() error: %v", err)
		}
	}

	store.mu.RLock()
	size := len(store.tasks)
	store.mu.RUnlock()
	if size != defaultCapacity {
		t.Errorf("store holds %d tasks, want %d", size, defaultCapacity)
	}

	// The oldest entries are the evicted ones.
	if status, _ := store.GetTaskStatus(ctx, "id-0"); status != StatusTaskNotFound {
		t.Errorf("oldest task status = %q, want %q", status, StatusTaskNotFound)
	}
	last := fmt.Sprintf("id-%d", defaultCapacity+9)
	if status, _ := store.GetTaskStatus(ctx, last); status != StatusInProgress {
		t.Errorf("newest task status = %q, want %q", status, StatusInProgress)
	}
}

func TestInMemoryHistoryFilter(t *testing.T) {
	store := NewInMemoryStore(time.Hour)
	ctx := context.Background()

	base := time.Now().Add(-10 * time.Second)
	for i, app := range []string{"test_app", "test_app", "example"} {
		store.now = func() time.Time { return base.Add(time.Duration(i) * time.Second) }
		if err := store.SetCurrentTask(ctx, testTask(fmt.Sprintf("id-%d", i), app), StatusInProgress); err != nil {
			t.Fatalf("SetCurrentTask() error: %v", err)
		}
	}
	store.now = time.Now

	tests := []struct {
		name   string
		filter HistoryFilter
		want   int
	}{
		{
			name:   "window covers all",
			filter: HistoryFilter{From: epoch(base) - 60},
			want:   3,
		},
		{
			name:   "app filter",
			filter: HistoryFilter{From: epoch(base) - 60, App: "example"},
			want:   1,
		},
		{
			name:   "window excludes all",
			filter: HistoryFilter{From: epoch(base) + 3600},
			want:   0,
		},
		{
			name:   "to bound excludes later tasks",
			filter: HistoryFilter{From: epoch(base) - 60, To: epoch(base.Add(500 * time.Millisecond))},
			want:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks, err := store.GetState(ctx, tt.filter)
			if err != nil {
				t.Fatalf("GetState() error: %v", err)
			}
			if len(tasks) != tt.want {
				t.Errorf("GetState() returned %d tasks, want %d", len(tasks), tt.want)
			}
		})
	}

	tasks, _ := store.GetState(ctx, HistoryFilter{From: epoch(base) - 60, App: "example"})
	if len(tasks) == 1 && tasks[0].App != "example" {
		t.Errorf("filtered task app = %q, want %q", tasks[0].App, "example")
	}
}

func TestInMemoryAppList(t *testing.T) {
	store := NewInMemoryStore(time.Hour)
	ctx := context.Background()

	for i, app := range []string{"test_app", "test_app", "example"} {
		if err := store.SetCurrentTask(ctx, testTask(fmt.Sprintf("id-%d", i), app), StatusInProgress); err != nil {
			t.Fatalf("SetCurrentTask() error: %v", err)
		}
	}

	apps, err := store.GetAppList(ctx)
	if err != nil {
		t.Fatalf("GetAppList() error: %v", err)
	}
	want := []string{"example", "test_app"}
	if len(apps) != len(want) || apps[0] != want[0] || apps[1] != want[1] {
		t.Errorf("GetAppList() = %v, want %v", apps, want)
	}
}
