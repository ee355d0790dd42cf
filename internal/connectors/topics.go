package connectors

const (
	TopicConnStatus  = "conn.status"
	TopicRadioFrom   = "radio.from"
	TopicRawFrameIn  = "raw.frame.in"
	TopicRawFrameOut = "raw.frame.out"
)
