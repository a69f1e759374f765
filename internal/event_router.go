package internal

// EventRouter fans system events out to every registered listener.
type EventRouter struct {
	listeners []EventHandler
}

func NewEventRouter() *EventRouter {
	return &EventRouter{}
}

func (r *EventRouter) AddEventListener(listener EventHandler) {
	r.listeners = append(r.listeners, listener)
}

func (r *EventRouter) OnStatusNotification(event *EventMessage) {
	for _, listener := range r.listeners {
		listener.OnStatusNotification(event)
	}
}

func (r *EventRouter) OnSessionStart(event *EventMessage) {
	for _, listener := range r.listeners {
		listener.OnSessionStart(event)
	}
}

func (r *EventRouter) OnSessionStop(event *EventMessage) {
	for _, listener := range r.listeners {
		listener.OnSessionStop(event)
	}
}

func (r *EventRouter) OnAlert(event *EventMessage) {
	for _, listener := range r.listeners {
		listener.OnAlert(event)
	}
}
