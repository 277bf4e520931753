// Package stage holds the outcome and result types shared by the pipeline
// entry points: the mailbox poller, the storage event processor and the
// command webhook.
package stage

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
)

// Error taxonomy. Units of work wrap one of these so orchestrators can decide
// whether a failure is skippable without inspecting messages.
var (
	ErrTransientIO    = errors.New("transient io error")
	ErrMalformedInput = errors.New("malformed input")
	ErrNotFound       = errors.New("not found")
	ErrConfiguration  = errors.New("configuration error")
)

type Status string

const (
	StatusOK      Status = "ok"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Outcome is the tagged result of a single unit of work (one mailbox message,
// one stored record, one command).
type Outcome struct {
	Unit   string `json:"unit"`
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
	Err    error  `json:"-"`
}

func OK(unit string) Outcome {
	return Outcome{Unit: unit, Status: StatusOK}
}

// Fail builds an outcome for err, classifying it as skipped or failed.
func Fail(unit string, err error) Outcome {
	return Outcome{Unit: unit, Status: Classify(err), Reason: err.Error(), Err: err}
}

// Classify maps an error onto an outcome status. Missing or unparseable input
// is skipped; everything else counts as a failure.
func Classify(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrMalformedInput):
		return StatusSkipped
	default:
		return StatusFailed
	}
}

// Report collects outcomes for a batch.
type Report struct {
	Outcomes []Outcome `json:"outcomes"`
}

func (r *Report) Add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
}

func (r Report) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Result is what every entry point returns instead of a process exit code.
type Result struct {
	Code         int    `json:"code"`
	Body         any    `json:"body"`
	InvocationID string `json:"invocation_id"`
}

func NewResult(code int, body any) Result {
	return Result{Code: code, Body: body, InvocationID: uuid.NewString()}
}

// ErrorResult maps err onto a status code. Configuration problems and
// unexpected errors are 500s; malformed input is a 400.
func ErrorResult(err error) Result {
	code := http.StatusInternalServerError
	if errors.Is(err, ErrMalformedInput) {
		code = http.StatusBadRequest
	}
	return NewResult(code, map[string]string{"error": err.Error()})
}

func (r Result) Failed() bool {
	return r.Code >= http.StatusInternalServerError
}
