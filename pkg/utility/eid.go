package utility

import (
	"sync"

	"github.com/google/uuid"
)

// ExecutionID identifies one run of the control loop; every emitted record carries it.
type ExecutionID = uuid.UUID

var (
	executionID   ExecutionID
	executionIDMu sync.RWMutex
)

func GetExecutionID() ExecutionID {
	executionIDMu.RLock()
	id := executionID
	executionIDMu.RUnlock()

	if id != uuid.Nil {
		return id
	}

	executionIDMu.Lock()
	defer executionIDMu.Unlock()
	if executionID == uuid.Nil {
		executionID = uuid.Must(uuid.NewV7())
	}
	return executionID
}

func ResetExecutionID() ExecutionID {
	executionIDMu.Lock()
	defer executionIDMu.Unlock()

	executionID = uuid.Must(uuid.NewV7())
	return executionID
}
