//go:build !linux

package taskscaling

// readThreadHeadroom finds no limit outside Linux; the runtime's own
// thread limit still sits above DefaultThreadBudget.
func readThreadHeadroom() (int, bool) {
	return 0, false
}
