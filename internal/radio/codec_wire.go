package radio

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"

	"google.golang.org/protobuf/encoding/protowire"
)

// ToRadio / FromRadio envelope field numbers.
const (
	toRadioWantConfigID protowire.Number = 3

	fromRadioID               protowire.Number = 1
	fromRadioConfigCompleteID protowire.Number = 7
)

var fromRadioKinds = map[protowire.Number]FrameKind{
	2:  FrameKindPacket,
	3:  FrameKindMyInfo,
	4:  FrameKindNodeInfo,
	5:  FrameKindConfig,
	6:  FrameKindLogRecord,
	7:  FrameKindConfigComplete,
	8:  FrameKindRebooted,
	9:  FrameKindModuleConfig,
	10: FrameKindChannel,
	11: FrameKindQueueStatus,
	12: FrameKindXModem,
	13: FrameKindMetadata,
	14: FrameKindMQTTProxy,
	15: FrameKindFileInfo,
	16: FrameKindClientNotification,
}

// WireCodec reads and writes the protobuf envelope directly with protowire,
// without generated message types.
type WireCodec struct {
	wantConfigID atomic.Uint32
	nonce        atomic.Uint32
}

func NewWireCodec() (*WireCodec, error) {
	var seedRaw [4]byte
	if _, err := rand.Read(seedRaw[:]); err != nil {
		return nil, fmt.Errorf("seed wire codec nonce: %w", err)
	}
	c := &WireCodec{}
	c.nonce.Store(binary.BigEndian.Uint32(seedRaw[:]))

	return c, nil
}

// EncodeWantConfig builds ToRadio{want_config_id} and remembers the id so the
// matching config_complete_id can be recognized.
func (c *WireCodec) EncodeWantConfig() ([]byte, error) {
	id := c.nextNonZeroID()
	payload := protowire.AppendTag(nil, toRadioWantConfigID, protowire.VarintType)
	payload = protowire.AppendVarint(payload, uint64(id))
	c.wantConfigID.Store(id)

	return payload, nil
}

func (c *WireCodec) PendingConfigID() uint32 {
	return c.wantConfigID.Load()
}

func (c *WireCodec) DecodeFromRadio(payload []byte) (DecodedFrame, error) {
	out := DecodedFrame{Raw: payload, Kind: FrameKindUnknown}
	if len(payload) == 0 {
		return out, errors.New("empty frame")
	}

	b := payload
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return out, fmt.Errorf("decode field tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fromRadioID && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return out, fmt.Errorf("decode frame id: %w", protowire.ParseError(m))
			}
			out.ID = uint32(v)
			b = b[m:]

			continue
		case num == fromRadioConfigCompleteID && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return out, fmt.Errorf("decode config_complete_id: %w", protowire.ParseError(m))
			}
			out.Kind = FrameKindConfigComplete
			out.ConfigCompleteID = uint32(v)
			if expected := c.wantConfigID.Load(); expected != 0 && out.ConfigCompleteID == expected {
				out.WantConfigReady = true
			}
			b = b[m:]

			continue
		}

		if kind, ok := fromRadioKinds[num]; ok {
			out.Kind = kind
		}
		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return out, fmt.Errorf("decode field %d: %w", num, protowire.ParseError(m))
		}
		b = b[m:]
	}

	return out, nil
}

func (c *WireCodec) nextNonZeroID() uint32 {
	for {
		id := c.nonce.Add(1)
		if id != 0 {
			return id
		}
	}
}
