package chat

// Message is one turn of the inbound transcript as sent by the widget.
type Message struct {
	Role  string
	Parts []Part
}

// Part is a single content part. Only text parts carry payload today;
// other types are preserved in transit but ignored for persistence.
type Part struct {
	Type string
	Text string
}

// Result summarizes a completed generation.
type Result struct {
	Text       string
	TokensUsed *int32
}
