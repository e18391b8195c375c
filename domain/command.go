package domain

// RelayCommand asks a relay worker to process one message of a sender.
// Commands of the same sender always land on the same worker.
type RelayCommand struct {
	Message ChatMessage
}

func (c RelayCommand) SenderHandle() Handle {
	return c.Message.Sender.Handle
}
