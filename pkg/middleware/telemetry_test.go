package middleware

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/peter-kozarec/paperloop/pkg/common"
)

func TestMiddlewareTelemetry_Counts(t *testing.T) {
	tel := NewTelemetry(nil)
	ctx := context.Background()

	tel.WithPrice(NoopPriceHdl)(ctx, common.Price{})
	tel.WithPrice(NoopPriceHdl)(ctx, common.Price{})
	tel.WithSignal(NoopSignalHdl)(ctx, common.Signal{})
	tel.WithOrder(NoopOrderHdl)(ctx, common.Order{})
	tel.WithFill(NoopFillHdl)(ctx, common.Fill{})
	tel.WithNote(NoopNoteHdl)(ctx, common.Note{})
	tel.WithNote(NoopNoteHdl)(ctx, common.Note{})
	tel.WithNote(NoopNoteHdl)(ctx, common.Note{})

	counts := tel.Counts()
	assert.Equal(t, int64(2), counts[common.TopicMarketLast])
	assert.Equal(t, int64(1), counts[common.TopicSignalsTarget])
	assert.Equal(t, int64(1), counts[common.TopicOrdersPlanned])
	assert.Equal(t, int64(1), counts[common.TopicExecFills])
	assert.Equal(t, int64(3), counts[common.TopicStrategyLog])
	assert.Equal(t, int64(0), counts[common.TopicOrderRejected])
}

func TestMiddlewareTelemetry_Concurrent(t *testing.T) {
	tel := NewTelemetry(zap.NewNop())
	wrapped := tel.WithFill(NoopFillHdl)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 250; j++ {
				wrapped(context.Background(), common.Fill{})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(2000), tel.Counts()[common.TopicExecFills])
	tel.PrintStatistics()
}
