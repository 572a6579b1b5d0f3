package camlink

import "fmt"

// Status classifies the outcome of a query.
type Status int

const (
	// StatusOK means a reply arrived.
	StatusOK Status = iota
	// StatusAbsent means no reply arrived before the timeout. The coprocessor may
	// simply have nothing to report yet.
	StatusAbsent
	// StatusFault means the link could not carry the request (see Result.Err).
	StatusFault
)

// String returns the status name
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusAbsent:
		return "absent"
	case StatusFault:
		return "fault"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is the outcome of one request/reply exchange.
type Result struct {
	Reply  string
	Status Status
	Err    error // Set when Status is StatusFault
}

// OK reports whether a reply was received
func (r Result) OK() bool {
	return r.Status == StatusOK
}

func replied(reply string) Result {
	return Result{Reply: reply, Status: StatusOK}
}

func absent() Result {
	return Result{Status: StatusAbsent}
}

func fault(err error) Result {
	return Result{Status: StatusFault, Err: err}
}
