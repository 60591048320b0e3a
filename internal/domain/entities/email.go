package entities

// OutboundMessage is a provider-agnostic email ready to hand to a transport.
type OutboundMessage struct {
	// Reference correlates the message with its notification record.
	Reference string
	To        string
	Subject   string
	HTML      string
	Text      string
	Tags      []string
}

// SendResult is the normalized outcome of one send.
type SendResult struct {
	Reference         string
	To                string
	Provider          string
	ProviderMessageID string
	Err               error
	Suppressed        bool
	// FallbackLogged is set when a failed send was written to the console log instead.
	FallbackLogged bool
}

func (r SendResult) OK() bool {
	return r.Err == nil && !r.Suppressed
}

// BatchResult keeps every outcome in input order plus the three partitions.
type BatchResult struct {
	Results    []SendResult
	Succeeded  []SendResult
	Failed     []SendResult
	Suppressed []SendResult
}
