package order

type Status string

const (
	StatusPending    Status = "pending"
	StatusPaid       Status = "paid"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// transitions is the single source of truth for legal status edges.
// Edges not listed here are rejected; same-state requests are reported
// separately so callers can treat redelivery as idempotent success.
var transitions = map[Status][]Status{
	StatusPending:    {StatusPaid, StatusFailed, StatusCancelled},
	StatusPaid:       {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusCompleted},
	StatusCompleted:  {},
	StatusFailed:     {},
	StatusCancelled:  {},
}

func (s Status) String() string {
	return string(s)
}

func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) IsTerminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// AllowedSources returns every status from which `to` is reachable.
// Repositories use this to build the guard clause of status updates.
func AllowedSources(to Status) []Status {
	var from []Status
	for s, nexts := range transitions {
		for _, n := range nexts {
			if n == to {
				from = append(from, s)
			}
		}
	}
	return from
}
