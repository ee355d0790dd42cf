package radio

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/skobkin/meshhttp/internal/bus"
	"github.com/skobkin/meshhttp/internal/connectors"
	"github.com/skobkin/meshhttp/internal/transport"
)

const configureTimeout = 6 * time.Second

var ErrNoWriter = errors.New("no frame writer attached")

// Service is the device session fed by a transport. It asks the device for its
// configuration after each successful probe and classifies inbound frames.
type Service struct {
	logger *slog.Logger
	bus    bus.MessageBus
	codec  Codec

	mu     sync.RWMutex
	writer transport.FrameWriter
}

func NewService(logger *slog.Logger, b bus.MessageBus, codec Codec) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		logger: logger,
		bus:    b,
		codec:  codec,
	}
}

// Attach sets the writer used for outbound frames. The transport is usually
// built after the session, so this happens once both exist.
func (s *Service) Attach(w transport.FrameWriter) {
	s.mu.Lock()
	s.writer = w
	s.mu.Unlock()
}

func (s *Service) Configure(ctx context.Context) {
	payload, err := s.codec.EncodeWantConfig()
	if err != nil {
		s.logger.Warn("encode want_config failed", "error", err)

		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, configureTimeout)
	defer cancel()
	if err := s.SendFrame(writeCtx, payload); err != nil {
		s.logger.Warn("want_config send failed", "error", err)

		return
	}
	s.logger.Debug("want_config sent", "len", len(payload))
}

func (s *Service) OnFrameReceived(_ context.Context, frame []byte) {
	decoded, err := s.codec.DecodeFromRadio(frame)
	if err != nil {
		s.logger.Warn("decode fromradio failed", "error", err, "len", len(frame))
		decoded = DecodedFrame{Raw: frame, Kind: FrameKindUnknown}
	}
	if decoded.WantConfigReady {
		s.logger.Info("device configuration received", "config_id", decoded.ConfigCompleteID)
	}
	if s.bus != nil {
		s.bus.Publish(connectors.TopicRadioFrom, decoded)
	}
}

func (s *Service) SendFrame(ctx context.Context, frame []byte) error {
	s.mu.RLock()
	w := s.writer
	s.mu.RUnlock()
	if w == nil {
		return ErrNoWriter
	}

	return w.WriteFrame(ctx, frame)
}
