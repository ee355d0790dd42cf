package radio

// FrameKind names the top-level variant carried by an inbound frame.
type FrameKind string

const (
	FrameKindUnknown            FrameKind = "unknown"
	FrameKindPacket             FrameKind = "packet"
	FrameKindMyInfo             FrameKind = "my_info"
	FrameKindNodeInfo           FrameKind = "node_info"
	FrameKindConfig             FrameKind = "config"
	FrameKindLogRecord          FrameKind = "log_record"
	FrameKindConfigComplete     FrameKind = "config_complete_id"
	FrameKindRebooted           FrameKind = "rebooted"
	FrameKindModuleConfig       FrameKind = "module_config"
	FrameKindChannel            FrameKind = "channel"
	FrameKindQueueStatus        FrameKind = "queue_status"
	FrameKindXModem             FrameKind = "xmodem_packet"
	FrameKindMetadata           FrameKind = "metadata"
	FrameKindMQTTProxy          FrameKind = "mqtt_client_proxy_message"
	FrameKindFileInfo           FrameKind = "file_info"
	FrameKindClientNotification FrameKind = "client_notification"
)

// DecodedFrame is an inbound frame with its envelope fields identified.
// The payload itself is left to higher layers.
type DecodedFrame struct {
	Raw              []byte
	ID               uint32
	Kind             FrameKind
	ConfigCompleteID uint32
	WantConfigReady  bool
}

// Codec translates between transport frames and session events.
type Codec interface {
	EncodeWantConfig() ([]byte, error)
	DecodeFromRadio(payload []byte) (DecodedFrame, error)
}
