package taskscaling

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/Swind/go-task-scaling/core"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCgroupPidsHeadroom(t *testing.T) {
	tests := []struct {
		name    string
		cgroup  string
		files   map[string]string
		want    int
		limited bool
	}{
		{
			name:   "v2 limited",
			cgroup: "0::/job\n",
			files: map[string]string{
				"job/pids.max":     "2000\n",
				"job/pids.current": "100\n",
			},
			want: 2000 - 100 - threadReserve, limited: true,
		},
		{
			name:   "v2 namespaced root",
			cgroup: "0::/\n",
			files: map[string]string{
				"pids.max":     "512\n",
				"pids.current": "12\n",
			},
			want: 512 - 12 - threadReserve, limited: true,
		},
		{
			name:   "v2 unlimited",
			cgroup: "0::/job\n",
			files: map[string]string{
				"job/pids.max":     "max\n",
				"job/pids.current": "100\n",
			},
		},
		{
			name:   "v1 pids controller",
			cgroup: "12:memory:/docker/abc\n7:pids:/docker/abc\n",
			files: map[string]string{
				"pids/docker/abc/pids.max":     "1024\n",
				"pids/docker/abc/pids.current": "24\n",
			},
			want: 1024 - 24 - threadReserve, limited: true,
		},
		{
			name:   "no pids files",
			cgroup: "0::/job\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			root := filepath.Join(dir, "cgroup")
			procCgroup := filepath.Join(dir, "self-cgroup")
			writeFile(t, procCgroup, tt.cgroup)
			for name, content := range tt.files {
				writeFile(t, filepath.Join(root, name), content)
			}

			got, limited := cgroupPidsHeadroom(procCgroup, root)
			if limited != tt.limited || got != tt.want {
				t.Errorf("cgroupPidsHeadroom = (%d, %v), want (%d, %v)", got, limited, tt.want, tt.limited)
			}
		})
	}
}

func TestRlimitHeadroom_MatchesGetrlimit(t *testing.T) {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NPROC, &rl); err != nil {
		t.Skipf("Getrlimit: %v", err)
	}

	got, limited := rlimitHeadroom(100)
	if rl.Cur == unix.RLIM_INFINITY {
		if limited {
			t.Errorf("unlimited RLIMIT_NPROC reported as limited (%d)", got)
		}
		return
	}
	if !limited || got != headroom(rl.Cur, 100) {
		t.Errorf("rlimitHeadroom = (%d, %v), want (%d, true)", got, limited, headroom(rl.Cur, 100))
	}
}

// TestThreadPerTaskExecutor_HoldsOSThreads verifies each running task owns an OS thread
// Given: 100 tasks blocked inside a thread-per-task executor
// When: The live thread count is read while they block and after they finish
// Then: It rises by at least 100 and falls back once the tasks return
func TestThreadPerTaskExecutor_HoldsOSThreads(t *testing.T) {
	const n = 100
	withThreadHeadroom(t, 0, false)
	e := NewThreadPerTaskExecutor("threads", n, nil)
	e.Start(context.Background())
	defer e.Shutdown()

	before := selfThreads()
	release := make(chan struct{})
	for i := 0; i < n; i++ {
		if err := e.Submit(func(ctx context.Context) { <-release }); err != nil {
			t.Fatalf("Submit %d failed: %v", i, err)
		}
	}
	waitFor(t, func() bool { return e.InUse() == n })

	if during := selfThreads(); during < before+n-1 {
		t.Errorf("threads while blocked = %d, want at least %d", during, before+n-1)
	}

	close(release)
	if err := e.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	// Locked threads are never returned to the runtime, so they exit.
	waitFor(t, func() bool { return selfThreads() < before+n/2 })
}

// TestLightweightExecutor_SleepersHoldNoThreads verifies parked goroutines do not pin threads
// Given: 10,000 goroutines sleeping in a lightweight executor
// When: The live thread count is read while they sleep
// Then: It grows by no more than GOMAXPROCS plus a small runtime allowance
func TestLightweightExecutor_SleepersHoldNoThreads(t *testing.T) {
	const n = 10_000
	e := NewLightweightExecutor("goroutines", nil)
	e.Start(context.Background())
	defer e.Shutdown()

	before := selfThreads()
	for i := 0; i < n; i++ {
		_ = e.Submit(func(ctx context.Context) { _ = core.Sleep(ctx, 500*time.Millisecond) })
	}
	waitFor(t, func() bool { return e.Stats().Active == n })

	if during := selfThreads(); during > before+threadAllowance() {
		t.Errorf("threads while %d goroutines sleep = %d, want at most %d", n, during, before+threadAllowance())
	}
	if err := e.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
}
