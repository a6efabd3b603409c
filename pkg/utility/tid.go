package utility

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type TraceID = uint64

const (
	machineBits  = 10
	sequenceBits = 13

	maxSequence = 1<<sequenceBits - 1
	maxMachine  = 1<<machineBits - 1

	timestampShift = machineBits + sequenceBits
	machineShift   = sequenceBits
)

var (
	traceMu       sync.Mutex
	lastTimestamp uint64
	sequence      uint64
	machineID     uint64
	epoch         = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
)

func init() {
	machineID = uint64(uuid.New().ID()) & maxMachine
}

// CreateTraceID returns a strictly increasing id: millisecond timestamp, machine bits, sequence.
func CreateTraceID() TraceID {
	traceMu.Lock()
	defer traceMu.Unlock()

	timestamp := uint64(time.Now().UnixMilli() - epoch)
	if timestamp <= lastTimestamp {
		timestamp = lastTimestamp
		sequence = (sequence + 1) & maxSequence
		if sequence == 0 {
			timestamp++
		}
	} else {
		sequence = 0
	}
	lastTimestamp = timestamp

	return (timestamp << timestampShift) | (machineID << machineShift) | sequence
}

func ParseTraceID(id TraceID) (timestamp time.Time, machine uint64, seq uint64) {
	seq = id & maxSequence
	machine = (id >> machineShift) & maxMachine
	ts := id >> timestampShift
	timestamp = time.UnixMilli(epoch + int64(ts))
	return
}
