package middleware

import (
	"context"
	"testing"

	"github.com/peter-kozarec/paperloop/pkg/bus"
	"github.com/peter-kozarec/paperloop/pkg/common"
	"github.com/peter-kozarec/paperloop/pkg/utility/fixed"
)

func TestMiddleware_Chain(t *testing.T) {
	type handler func(int) int

	add10 := func(h handler) handler {
		return func(n int) int {
			return h(n) + 10
		}
	}

	multiply2 := func(h handler) handler {
		return func(n int) int {
			return h(n) * 2
		}
	}

	base := func(n int) int {
		return n
	}

	chained := Chain(add10, multiply2)(base)
	result := chained(5)

	if result != 20 {
		t.Errorf("Expected 20, got %d", result)
	}
}

func TestMiddleware_ChainEmpty(t *testing.T) {
	type handler func(string) string

	base := func(s string) string {
		return s
	}

	chained := Chain[handler]()(base)
	result := chained("test")

	if result != "test" {
		t.Errorf("Expected 'test', got %s", result)
	}
}

func TestMiddleware_ChainSingle(t *testing.T) {
	type handler func(string) string

	uppercase := func(h handler) handler {
		return func(s string) string {
			return h(s) + "!"
		}
	}

	base := func(s string) string {
		return s
	}

	chained := Chain(uppercase)(base)
	result := chained("hello")

	if result != "hello!" {
		t.Errorf("Expected 'hello!', got %s", result)
	}
}

func TestMiddleware_ChainOrder(t *testing.T) {
	type handler func([]string) []string

	appendA := func(h handler) handler {
		return func(s []string) []string {
			result := h(s)
			return append(result, "A")
		}
	}

	appendB := func(h handler) handler {
		return func(s []string) []string {
			result := h(s)
			return append(result, "B")
		}
	}

	appendC := func(h handler) handler {
		return func(s []string) []string {
			result := h(s)
			return append(result, "C")
		}
	}

	base := func(s []string) []string {
		return append(s, "base")
	}

	chained := Chain(appendA, appendB, appendC)(base)
	result := chained([]string{})

	expected := []string{"base", "C", "B", "A"}
	if len(result) != len(expected) {
		t.Errorf("Expected length %d, got %d", len(expected), len(result))
	}

	for i, v := range result {
		if v != expected[i] {
			t.Errorf("At index %d: expected %s, got %s", i, expected[i], v)
		}
	}
}

func TestMiddleware_ChainLarge(t *testing.T) {
	type handler func(int) int

	increment := func(h handler) handler {
		return func(n int) int {
			return h(n) + 1
		}
	}

	base := func(n int) int {
		return n
	}

	var middlewares []func(handler) handler
	for i := 0; i < 100; i++ {
		middlewares = append(middlewares, increment)
	}

	chained := Chain(middlewares...)(base)
	result := chained(0)

	if result != 100 {
		t.Errorf("Expected 100, got %d", result)
	}
}

func BenchmarkMiddleware_Chain(b *testing.B) {
	type handler func(int) int

	add := func(n int) func(handler) handler {
		return func(h handler) handler {
			return func(x int) int {
				return h(x) + n
			}
		}
	}

	base := func(n int) int {
		return n
	}

	chained := Chain(add(1), add(2), add(3))(base)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		chained(0)
	}
}

func BenchmarkMiddleware_ChainDeep(b *testing.B) {
	type handler func(int) int

	passthrough := func(h handler) handler {
		return func(n int) int {
			return h(n)
		}
	}

	base := func(n int) int {
		return n
	}

	var middlewares []func(handler) handler
	for i := 0; i < 50; i++ {
		middlewares = append(middlewares, passthrough)
	}

	chained := Chain(middlewares...)(base)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		chained(42)
	}
}

func TestMiddleware_ChainEventHandlers(t *testing.T) {
	telemetry := NewTelemetry(nil)
	monitor := NewMonitor(nil, MonitorNone)

	var got []string
	base := func(_ context.Context, price common.Price) {
		got = append(got, price.Symbol)
	}

	wrapped := Chain(telemetry.WithPrice, monitor.WithPrice)(bus.EventHandler[common.Price](base))
	wrapped(context.Background(), common.Price{Symbol: "BTCUSDT", Price: fixed.FromInt(100, 0)})
	wrapped(context.Background(), common.Price{Symbol: "ETHUSDT", Price: fixed.FromInt(10, 0)})

	if len(got) != 2 || got[0] != "BTCUSDT" || got[1] != "ETHUSDT" {
		t.Errorf("Expected both prices delivered in order, got %v", got)
	}
	if n := telemetry.Counts()[common.TopicMarketLast]; n != 2 {
		t.Errorf("Expected 2 counted prices, got %d", n)
	}
}
