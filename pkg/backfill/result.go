package backfill

import "fmt"

// Result contains statistics from a backfill run.
type Result struct {
	Persons int
	Scanned int
	Indexed int
	Skipped int
	Failed  int
}

// Summary returns a human-readable summary of the backfill result.
func (r *Result) Summary() string {
	return fmt.Sprintf(
		"Backfill complete: %d memories indexed, %d skipped (no summary), %d failed\n"+
			"Scanned %d memories across %d people",
		r.Indexed, r.Skipped, r.Failed,
		r.Scanned, r.Persons,
	)
}
