package taskscaling

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"runtime/pprof"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// readThreadHeadroom takes the tighter of the soft RLIMIT_NPROC and the
// cgroup pids controller.
func readThreadHeadroom() (int, bool) {
	room, limited := 0, false
	take := func(n int, ok bool) {
		if !ok {
			return
		}
		if !limited || n < room {
			room = n
		}
		limited = true
	}
	take(rlimitHeadroom(selfThreads()))
	take(cgroupPidsHeadroom("/proc/self/cgroup", "/sys/fs/cgroup"))
	return room, limited
}

// rlimitHeadroom counts only this process against RLIMIT_NPROC; other
// processes of the same user share the limit and eat into threadReserve.
func rlimitHeadroom(used int) (int, bool) {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NPROC, &rl); err != nil {
		return 0, false
	}
	if rl.Cur == unix.RLIM_INFINITY {
		return 0, false
	}
	return headroom(rl.Cur, uint64(used)), true
}

// selfThreads is the process's current OS thread count.
func selfThreads() int {
	data, err := os.ReadFile("/proc/self/status")
	if err == nil {
		sc := bufio.NewScanner(bytes.NewReader(data))
		for sc.Scan() {
			if v, ok := strings.CutPrefix(sc.Text(), "Threads:"); ok {
				if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
					return n
				}
			}
		}
	}
	return pprof.Lookup("threadcreate").Count()
}

// cgroupPidsHeadroom reads pids.max and pids.current for this process's
// cgroup. procCgroup is the /proc/<pid>/cgroup file, root the cgroupfs mount.
func cgroupPidsHeadroom(procCgroup, root string) (int, bool) {
	data, err := os.ReadFile(procCgroup)
	if err != nil {
		return 0, false
	}

	var dirs []string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		parts := strings.SplitN(line, ":", 3)
		if len(parts) != 3 {
			continue
		}
		switch {
		case parts[0] == "0" && parts[1] == "":
			// cgroup v2
			dirs = append(dirs, filepath.Join(root, parts[2]), root)
		case hasController(parts[1], "pids"):
			dirs = append(dirs, filepath.Join(root, "pids", parts[2]), filepath.Join(root, "pids"))
		}
	}

	for _, dir := range dirs {
		limit, err := os.ReadFile(filepath.Join(dir, "pids.max"))
		if err != nil {
			continue
		}
		raw := strings.TrimSpace(string(limit))
		if raw == "max" {
			return 0, false
		}
		maxN, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return 0, false
		}
		current, err := os.ReadFile(filepath.Join(dir, "pids.current"))
		if err != nil {
			return 0, false
		}
		curN, err := strconv.ParseUint(strings.TrimSpace(string(current)), 10, 64)
		if err != nil {
			return 0, false
		}
		return headroom(maxN, curN), true
	}
	return 0, false
}

func hasController(list, name string) bool {
	for _, c := range strings.Split(list, ",") {
		if c == name {
			return true
		}
	}
	return false
}
