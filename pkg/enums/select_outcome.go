package enums

// SelectOutcome reports what happened to a date selection request.
type SelectOutcome string

const (
	// SelectApplied means the fetched ticket options now back the session.
	SelectApplied SelectOutcome = "applied"
	// SelectRejected means the date is not scheduled for the tour.
	SelectRejected SelectOutcome = "rejected"
	// SelectStale means a newer selection overtook this one and its fetch was dropped.
	SelectStale SelectOutcome = "stale"
	// SelectFailed means the ticket options could not be fetched.
	SelectFailed SelectOutcome = "failed"
)

// String implements fmt.Stringer.
func (s SelectOutcome) String() string {
	return string(s)
}
