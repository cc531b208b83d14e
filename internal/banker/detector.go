// Package banker implements deadlock-avoidance safety checking: given a
// snapshot of what every task currently holds and still needs, IsSafe
// decides whether a hypothetical resource state can still run every task
// to completion. It has no lock or scheduler dependency — ksyscall
// materializes a State from live process/task bookkeeping and calls it
// synchronously inside sys_semaphore_down.
package banker

// State is a snapshot of one process's resource accounting: allocation[t][r]
// is how many units of resource r task t currently holds, need[t][r] is
// how many more units t requires before finishing (already includes any
// hypothetical pending request the caller wants to test), and work[r] is
// the resource units currently available to satisfy a need.
type State struct {
	Allocation [][]int
	Need       [][]int
	Work       []int
}

// IsSafe runs the Banker's algorithm over s: repeatedly finds some
// unfinished task whose need is fully covered by work, lets it run to
// completion (returning its allocation to work), and repeats. The state
// is safe iff every task eventually finishes. s is read-only; IsSafe
// never mutates Allocation, Need, or Work.
func IsSafe(s State) bool {
	taskCount := len(s.Allocation)
	resourceCount := len(s.Work)

	finished := make([]bool, taskCount)
	work := make([]int, resourceCount)
	copy(work, s.Work)

	for round := 0; round < taskCount; round++ {
		progressed := false
		for i := 0; i < taskCount; i++ {
			if finished[i] {
				continue
			}
			if !needFits(s.Need[i], work) {
				continue
			}
			finished[i] = true
			for j := 0; j < resourceCount; j++ {
				work[j] += s.Allocation[i][j]
			}
			progressed = true
			break
		}
		if !progressed {
			break
		}
	}

	for _, done := range finished {
		if !done {
			return false
		}
	}
	return true
}

func needFits(need []int, work []int) bool {
	for j := range need {
		if need[j] > work[j] {
			return false
		}
	}
	return true
}
