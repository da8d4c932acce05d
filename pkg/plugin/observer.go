package plugin

// Observer receives connector and registry events. Implementations must be
// safe for concurrent use. ConnectAttempt is called with the connector's lock
// held; Dispatched is called after the connector has returned.
type Observer interface {
	// ConnectAttempt is called after every dial, err is nil on success.
	ConnectAttempt(t Type, err error)
	// Dispatched is called once per registry Dispatch or Query.
	Dispatched(t Type, op string, err error)
}

type nopObserver struct{}

func (nopObserver) ConnectAttempt(Type, error)     {}
func (nopObserver) Dispatched(Type, string, error) {}
