package frame

import "fmt"

// Command is a STOMP protocol verb. Only the verbs this client sends or
// expects to receive are part of the set.
type Command int

const (
	Connect Command = iota + 1
	Disconnect
	Subscribe
	Unsubscribe

	Connected
	Message
	Error
)

// Commands lists every command in wire order of declaration.
var Commands = []Command{Connect, Disconnect, Subscribe, Unsubscribe, Connected, Message, Error}

func (c Command) String() string {
	switch c {
	case Connect:
		return "CONNECT"
	case Disconnect:
		return "DISCONNECT"
	case Subscribe:
		return "SUBSCRIBE"
	case Unsubscribe:
		return "UNSUBSCRIBE"
	case Connected:
		return "CONNECTED"
	case Message:
		return "MESSAGE"
	case Error:
		return "ERROR"
	}
	return fmt.Sprintf("Command(%d)", int(c))
}

// Inbound reports whether the command is one a server sends to a client.
func (c Command) Inbound() bool {
	switch c {
	case Connected, Message, Error:
		return true
	case Connect, Disconnect, Subscribe, Unsubscribe:
		return false
	}
	return false
}

// ParseCommand maps a wire token to its Command. Unknown tokens are an error.
func ParseCommand(token string) (Command, error) {
	for _, c := range Commands {
		if c.String() == token {
			return c, nil
		}
	}
	return 0, &ParseError{Reason: "unknown command", Line: token}
}
