package taskscaling

import "math"

// threadReserve is kept free below any OS limit for the runtime's own
// threads and the rest of the process.
const threadReserve = 64

// osThreadHeadroom reports how many more OS threads the process can start
// before the kernel refuses, and false when no limit was found.
var osThreadHeadroom = readThreadHeadroom

// capThreadBudget lowers requested to what the OS will actually grant.
// Past that point pthread_create fails and the runtime aborts the process,
// so the budget must run out first.
func capThreadBudget(requested int) int {
	room, ok := osThreadHeadroom()
	if !ok || room >= requested {
		return requested
	}
	return max(room, 1)
}

// headroom is limit minus used minus threadReserve, floored at zero.
func headroom(limit, used uint64) int {
	if used+threadReserve >= limit {
		return 0
	}
	free := limit - used - threadReserve
	if free > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(free)
}
