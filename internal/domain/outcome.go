package domain

// RunStatus is the status reported by the remote assistant service for a run.
type RunStatus string

// Run statuses reported by the assistant service.
const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCancelling     RunStatus = "cancelling"
	RunStatusCancelled      RunStatus = "cancelled"
	RunStatusFailed         RunStatus = "failed"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusIncomplete     RunStatus = "incomplete"
	RunStatusExpired        RunStatus = "expired"
)

// Pending reports whether polling should continue for this status.
func (s RunStatus) Pending() bool {
	switch s {
	case RunStatusQueued, RunStatusInProgress, RunStatusCancelling:
		return true
	default:
		return false
	}
}

// OutcomeKind is the resolved result of driving one run.
type OutcomeKind int

const (
	OutcomeCompleted OutcomeKind = iota
	OutcomeTimedOut
	OutcomeRequiresAction
	OutcomeCancelled
	OutcomeFailed
	OutcomeExpired
	OutcomeIncomplete
	OutcomeUnknown
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCompleted:
		return "completed"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeRequiresAction:
		return "requires_action"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeFailed:
		return "failed"
	case OutcomeExpired:
		return "expired"
	case OutcomeIncomplete:
		return "incomplete"
	default:
		return "unknown"
	}
}

// Fixed user-facing replies for runs that did not complete.
const (
	ReplyTimedOut       = "Timeout"
	ReplyRequiresAction = "Action required for OpenAI assistant"
	ReplyCancelled      = "Run is cancelled"
	ReplyFailed         = "Run is failed"
	ReplyExpired        = "Run is expired"
	ReplyIncomplete     = "Run is incomplete"
	ReplyUnknown        = "Run ended with an unexpected status"
)

// RunOutcome is the terminal (or timed-out) result of a run. Text is only
// meaningful for OutcomeCompleted and may be empty.
type RunOutcome struct {
	Kind   OutcomeKind
	Status RunStatus
	Text   string
}

// OutcomeFromStatus maps a non-pending, non-completed status to its outcome.
func OutcomeFromStatus(status RunStatus) RunOutcome {
	switch status {
	case RunStatusRequiresAction:
		return RunOutcome{Kind: OutcomeRequiresAction, Status: status}
	case RunStatusCancelled:
		return RunOutcome{Kind: OutcomeCancelled, Status: status}
	case RunStatusFailed:
		return RunOutcome{Kind: OutcomeFailed, Status: status}
	case RunStatusExpired:
		return RunOutcome{Kind: OutcomeExpired, Status: status}
	case RunStatusIncomplete:
		return RunOutcome{Kind: OutcomeIncomplete, Status: status}
	case RunStatusCompleted:
		return RunOutcome{Kind: OutcomeCompleted, Status: status}
	default:
		return RunOutcome{Kind: OutcomeUnknown, Status: status}
	}
}

// Reply returns the single string delivered to the chat for this outcome.
func (o RunOutcome) Reply() string {
	switch o.Kind {
	case OutcomeCompleted:
		return o.Text
	case OutcomeTimedOut:
		return ReplyTimedOut
	case OutcomeRequiresAction:
		return ReplyRequiresAction
	case OutcomeCancelled:
		return ReplyCancelled
	case OutcomeFailed:
		return ReplyFailed
	case OutcomeExpired:
		return ReplyExpired
	case OutcomeIncomplete:
		return ReplyIncomplete
	default:
		return ReplyUnknown
	}
}
