package core

// Message is a relayed chat message. It is never stored.
type Message struct {
	Room string
	From string
	Text string
}
