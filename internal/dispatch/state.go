package dispatch

// State of dispatching for one résumé.
type State int

const (
	// StateActive allows submissions.
	StateActive State = iota
	// StateRateLimited is terminal for the run: the rest of the stream is drained without submitting.
	StateRateLimited
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

type resumeState struct {
	state State
	// seenEmployers is collected but not used for skipping.
	seenEmployers map[string]struct{}
}

func newResumeState() *resumeState {
	return &resumeState{seenEmployers: make(map[string]struct{})}
}

func (s *resumeState) active() bool {
	return s.state == StateActive
}

func (s *resumeState) rateLimit() {
	s.state = StateRateLimited
}

func (s *resumeState) seeEmployer(id string) {
	if id != "" {
		s.seenEmployers[id] = struct{}{}
	}
}

// Stats counts what happened to the vacancies of a résumé.
type Stats struct {
	Seen    int
	Skipped int
	Applied int
	Failed  int
	// Drained vacancies arrived after the rate limit was hit.
	Drained   int
	Employers int
	State     State
}

func (s *Stats) add(o Stats) {
	s.Seen += o.Seen
	s.Skipped += o.Skipped
	s.Applied += o.Applied
	s.Failed += o.Failed
	s.Drained += o.Drained
	s.Employers += o.Employers
}
