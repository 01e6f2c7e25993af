package ports

// DispatchMetrics receives counters from the dispatch core.
type DispatchMetrics interface {
	AcceptOutcome(outcome string)
	Broadcast(tier int, recipients int)
	Escalated(tier int)
	TimedOut()
	StorageRetry(operation string)
	NotificationFailed(eventType string)
	PendingOrders(n int64)
}

type NoopMetrics struct{}

func (NoopMetrics) AcceptOutcome(string)      {}
func (NoopMetrics) Broadcast(int, int)        {}
func (NoopMetrics) Escalated(int)             {}
func (NoopMetrics) TimedOut()                 {}
func (NoopMetrics) StorageRetry(string)       {}
func (NoopMetrics) NotificationFailed(string) {}
func (NoopMetrics) PendingOrders(int64)       {}
