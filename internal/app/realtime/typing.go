package realtime

// Typing relays typing signals from a sender to a receiver. It keeps no state:
// each client rebuilds the "is typing" flag from the stream of events it receives.
type Typing struct {
	router *Router
}

// NewTyping returns a Typing relay over router.
func NewTyping(router *Router) *Typing {
	return &Typing{router: router}
}

// Start tells receiverID that senderID started typing.
func (t *Typing) Start(senderID, receiverID string) int {
	return t.relay(senderID, receiverID, true)
}

// Stop tells receiverID that senderID stopped typing.
func (t *Typing) Stop(senderID, receiverID string) int {
	return t.relay(senderID, receiverID, false)
}

func (t *Typing) relay(senderID, receiverID string, typing bool) int {
	if receiverID == "" || receiverID == senderID {
		return 0
	}
	return t.router.Typing(senderID, receiverID, typing)
}
