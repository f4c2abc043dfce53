package draft

import "socialplane/services/postjob"

// Aggregate recomputes a draft's status from the snapshot of its jobs. It is
// pure: the same snapshot always yields the same answer, and it has no side
// effects. ok is false when the snapshot gives no basis to change the status
// (no jobs, or a mix that maps to nothing), in which case the caller leaves
// the draft as is.
func Aggregate(jobs []postjob.PostJob, maxAttempts int) (status Status, ok bool) {
	var success, exhausted, open, canceled int
	for _, j := range jobs {
		switch {
		case j.Status == postjob.StatusSuccess:
			success++
		case j.Status == postjob.StatusCanceled:
			canceled++
		case j.Status == postjob.StatusFailed && j.AttemptCount >= maxAttempts:
			exhausted++
		default:
			// pending, ready, generated, publishing, or failed with
			// attempts remaining
			open++
		}
	}

	switch {
	case len(jobs) == 0:
		return "", false
	case open > 0:
		return StatusScheduled, true
	case success > 0 && exhausted > 0:
		return StatusPartiallyPublished, true
	case success > 0 && exhausted == 0 && canceled == 0:
		return StatusPublished, true
	case exhausted > 0 && success == 0 && canceled == 0:
		return StatusFailed, true
	default:
		// only canceled jobs, or canceled mixed with a single outcome
		// class; nothing meaningful to record
		return "", false
	}
}

// AllTerminal reports whether every job in the snapshot is done for good.
// The notifier only fires once this holds.
func AllTerminal(jobs []postjob.PostJob, maxAttempts int) bool {
	if len(jobs) == 0 {
		return false
	}
	for i := range jobs {
		if !jobs[i].Terminal(maxAttempts) {
			return false
		}
	}
	return true
}
