package client

// Delegate receives protocol events. Callbacks run on the transport's
// reader goroutine, one at a time and in arrival order.
type Delegate interface {
	OnConnected()
	OnError(err error)
	OnDataReceived(data []byte, destination string)
}

// DelegateFuncs adapts plain functions to Delegate. Nil fields drop the
// corresponding event.
type DelegateFuncs struct {
	Connected    func()
	Error        func(err error)
	DataReceived func(data []byte, destination string)
}

func (d DelegateFuncs) OnConnected() {
	if d.Connected != nil {
		d.Connected()
	}
}

func (d DelegateFuncs) OnError(err error) {
	if d.Error != nil {
		d.Error(err)
	}
}

func (d DelegateFuncs) OnDataReceived(data []byte, destination string) {
	if d.DataReceived != nil {
		d.DataReceived(data, destination)
	}
}

// noDelegate is the explicit "nobody is listening" state.
type noDelegate struct{}

func (noDelegate) OnConnected() {}

func (noDelegate) OnError(error) {}

func (noDelegate) OnDataReceived([]byte, string) {}
