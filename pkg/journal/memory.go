package journal

import (
	"context"
	"sync"

	"github.com/peter-kozarec/paperloop/pkg/common"
)

// Memory keeps everything in process; used by tests and the report command.
type Memory struct {
	mu       sync.Mutex
	trades   []common.TradeRow
	equities []common.EquitySnapshot
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) RecordTrade(_ context.Context, row common.TradeRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, row)
	return nil
}

func (m *Memory) RecordEquity(_ context.Context, snapshot common.EquitySnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.equities = append(m.equities, snapshot)
	return nil
}

func (m *Memory) Flush(context.Context) error { return nil }
func (m *Memory) Close() error                { return nil }

func (m *Memory) Trades() []common.TradeRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]common.TradeRow, len(m.trades))
	copy(out, m.trades)
	return out
}

func (m *Memory) Equities() []common.EquitySnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]common.EquitySnapshot, len(m.equities))
	copy(out, m.equities)
	return out
}
