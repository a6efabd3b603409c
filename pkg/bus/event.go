package bus

import "time"

// Event is one published payload. Seq is the per-topic publish sequence, starting at 1.
type Event struct {
	Topic     string
	Payload   any
	Seq       uint64
	TimeStamp time.Time
}
