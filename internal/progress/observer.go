package progress

// WebSocketObserver adapts a Hub into the Observer interface so it can be
// registered on a Bus alongside any other progress sink (e.g. a future
// audit-log observer).
type WebSocketObserver struct {
	hub    *Hub
	filter EventFilter
}

// WebSocketObserverOption configures a WebSocketObserver.
type WebSocketObserverOption func(*WebSocketObserver)

// WithFilter restricts which events reach the websocket hub.
func WithFilter(filter EventFilter) WebSocketObserverOption {
	return func(o *WebSocketObserver) { o.filter = filter }
}

// NewWebSocketObserver creates an Observer that broadcasts every accepted
// event to hub's rooms.
func NewWebSocketObserver(hub *Hub, opts ...WebSocketObserverOption) *WebSocketObserver {
	o := &WebSocketObserver{hub: hub}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Name implements Observer.
func (o *WebSocketObserver) Name() string { return "websocket" }

// Filter implements Observer.
func (o *WebSocketObserver) Filter() EventFilter { return o.filter }

// GetHub returns the underlying Hub.
func (o *WebSocketObserver) GetHub() *Hub { return o.hub }

// OnEvent implements Observer by broadcasting to the event's execution room.
func (o *WebSocketObserver) OnEvent(event Event) error {
	o.hub.Broadcast(event)
	return nil
}
