package common

const (
	TopicMarketLast    = "market.last"
	TopicSignalsTarget = "signals.target"
	TopicOrdersPlanned = "orders.planned"
	TopicExecFills     = "exec.fills"
	TopicStrategyLog   = "strategy.log"
	TopicOrderRejected = "order.rejected"
)
