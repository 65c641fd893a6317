package progress

// Outcome is the observable result of a best-effort aggregate write.
type Outcome string

const (
	OutcomeWritten      Outcome = "written"
	OutcomeDeduplicated Outcome = "deduplicated"
	OutcomeSuppressed   Outcome = "suppressed"
	OutcomeFailed       Outcome = "failed"
	OutcomeInvalid      Outcome = "invalid"
	// OutcomeUnchanged means the request matched nothing to change.
	OutcomeUnchanged Outcome = "unchanged"
)

// Result is returned by every recorder instead of an error. Expected failure
// modes are reported through Outcome; Err carries the underlying cause for
// failed and invalid outcomes only.
type Result struct {
	OwnerID string  `json:"ownerId,omitempty"`
	Outcome Outcome `json:"outcome"`
	Err     error   `json:"-"`
}

// Owner returns the owner the write was attributed to. It reports false when
// the write was suppressed, disabled or rejected before reaching the queue.
func (r Result) Owner() (string, bool) {
	if r.OwnerID == "" {
		return "", false
	}
	return r.OwnerID, true
}

func (r Result) Written() bool { return r.Outcome == OutcomeWritten }

// Message renders Err for transport layers.
func (r Result) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

func Written(owner string) Result { return Result{OwnerID: owner, Outcome: OutcomeWritten} }

func Deduplicated(owner string) Result {
	return Result{OwnerID: owner, Outcome: OutcomeDeduplicated}
}

func Unchanged(owner string) Result {
	return Result{OwnerID: owner, Outcome: OutcomeUnchanged}
}

func Suppressed() Result { return Result{Outcome: OutcomeSuppressed} }

func Failed(owner string, err error) Result {
	return Result{OwnerID: owner, Outcome: OutcomeFailed, Err: err}
}

func Invalid(err error) Result { return Result{Outcome: OutcomeInvalid, Err: err} }
