package executor

import "fmt"

type ResultType int

const (
	ResultSuccess ResultType = iota + 1
	ResultNoop
	ResultError
)

func (t ResultType) String() string {
	switch t {
	case ResultSuccess:
		return "Success"
	case ResultNoop:
		return "Noop"
	case ResultError:
		return "Error"
	default:
		return fmt.Sprintf("ResultType(%d)", int(t))
	}
}

// Result is emitted once per executed record. Size is the number of bytes uploaded.
type Result struct {
	Type ResultType
	Key  string
	Size int64
}

// Observer receives every result of every worker. Implementations must be safe for
// concurrent use.
type Observer interface {
	Observe(workerID int, res Result)
}

type ObserverFunc func(workerID int, res Result)

func (f ObserverFunc) Observe(workerID int, res Result) { f(workerID, res) }
