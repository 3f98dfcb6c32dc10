package gauge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"tiltd/pkg/engine"
	"tiltd/pkg/protocol"
)

const (
	logLevelWarning = 3
	shutdownTimeout = 5 * time.Second
)

type Option func(*Server)

func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// Server streams reported samples to foxglove websocket clients on a sample
// channel, a frame transform channel and a log channel for checksum failures.
type Server struct {
	cfg     Config
	hub     *engine.Hub
	log     zerolog.Logger
	clients map[*client]struct{}
	mu      sync.RWMutex
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	subs map[uint32]uint64
	mu   sync.RWMutex
	once sync.Once
}

func NewServer(cfg Config, hub *engine.Hub, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg.withDefaults(),
		hub:     hub,
		log:     zerolog.Nop(),
		clients: make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Report hands s to the hub, making the server usable as a sink.
func (s *Server) Report(sample protocol.Sample) {
	s.hub.Publish(sample)
}

func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWS)

	httpServer := &http.Server{
		Addr:              s.cfg.WSAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	sub := s.hub.Subscribe()
	if sub == nil {
		return errors.New("gauge: hub is not running")
	}
	defer s.hub.Unsubscribe(sub)
	go s.broadcastLoop(ctx, sub)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()
	s.log.Info().Str("addr", s.cfg.WSAddr).Msg("gauge bridge listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		_ = httpServer.Shutdown(shutdownCtx)
		cancel()
		s.closeClients()
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("gauge listen %s: %w", s.cfg.WSAddr, err)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		Subprotocols: []string{Subprotocol},
		CheckOrigin: func(*http.Request) bool {
			return true
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := newClient(conn, s.cfg.SendBuf)
	s.addClient(c)
	defer func() {
		c.close()
		s.removeClient(c)
	}()

	if err := conn.WriteJSON(s.serverInfo()); err != nil {
		return
	}
	if err := conn.WriteJSON(s.advertise()); err != nil {
		return
	}
	s.log.Debug().Str("remote", r.RemoteAddr).Msg("gauge client connected")

	go c.writeLoop()
	c.readLoop(s.supportedChannels())
}

func (s *Server) supportedChannels() map[uint64]struct{} {
	return map[uint64]struct{}{
		SampleChannelID:    {},
		TransformChannelID: {},
		LogChannelID:       {},
	}
}

func (s *Server) serverInfo() ServerInfoMsg {
	return ServerInfoMsg{
		Op:                 OpServerInfo,
		Name:               s.cfg.Name,
		Capabilities:       []string{},
		SupportedEncodings: []string{},
		SessionID:          fmt.Sprintf("%d", time.Now().UTC().UnixNano()),
	}
}

func (s *Server) advertise() AdvertiseMsg {
	return AdvertiseMsg{Op: OpAdvertise, Channels: []Channel{
		{
			ID:             SampleChannelID,
			Topic:          s.cfg.SampleTopic,
			Encoding:       "json",
			SchemaName:     "tiltd.Sample",
			SchemaEncoding: "jsonschema",
			Schema:         SampleSchema,
		},
		{
			ID:             TransformChannelID,
			Topic:          s.cfg.TransformTopic,
			Encoding:       "json",
			SchemaName:     "foxglove.FrameTransforms",
			SchemaEncoding: "jsonschema",
			Schema:         TransformSchema,
		},
		{
			ID:             LogChannelID,
			Topic:          s.cfg.LogTopic,
			Encoding:       "json",
			SchemaName:     "foxglove.Log",
			SchemaEncoding: "jsonschema",
			Schema:         LogSchema,
		},
	}}
}

func (s *Server) broadcastLoop(ctx context.Context, sub <-chan protocol.Sample) {
	for {
		select {
		case <-ctx.Done():
			return
		case sample, ok := <-sub:
			if !ok {
				return
			}
			s.broadcastSample(sample)
		}
	}
}

func (s *Server) broadcastSample(sample protocol.Sample) {
	ts := sample.ReceivedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	s.publishJSONToChannel(SampleChannelID, ts, sampleMessage(sample, ts))
	s.publishJSONToChannel(TransformChannelID, ts, s.transformFromSample(sample, ts))
	if log, ok := s.logFromSample(sample, ts); ok {
		s.publishJSONToChannel(LogChannelID, ts, log)
	}
}

func sampleMessage(sample protocol.Sample, ts time.Time) SampleMessage {
	return SampleMessage{
		Seq:        sample.Seq,
		TS:         ts.UTC().Format(time.RFC3339Nano),
		Roll:       sample.Roll,
		Pitch:      sample.Pitch,
		ChecksumOK: sample.ChecksumOK,
		FrameHex:   sample.FrameHex(),
	}
}

func (s *Server) transformFromSample(sample protocol.Sample, ts time.Time) FrameTransformsMessage {
	return FrameTransformsMessage{Transforms: []FrameTransformMessage{{
		Timestamp:     frameTime(ts),
		ParentFrameID: s.cfg.ParentFrameID,
		ChildFrameID:  s.cfg.FrameID,
		Rotation:      tiltQuaternion(sample.Roll, sample.Pitch),
	}}}
}

func (s *Server) logFromSample(sample protocol.Sample, ts time.Time) (LogMessage, bool) {
	if sample.ChecksumOK {
		return LogMessage{}, false
	}
	return LogMessage{
		Timestamp: frameTime(ts),
		Level:     logLevelWarning,
		Message:   fmt.Sprintf("%s: %s", sample.ChecksumStatus(), protocol.FormatRecord(sample.Frame[:])),
		Name:      s.cfg.Name,
	}, true
}

// tiltQuaternion converts roll and pitch in degrees to a rotation with zero
// yaw.
func tiltQuaternion(roll, pitch float64) Quaternion {
	r := roll * math.Pi / 180 / 2
	p := pitch * math.Pi / 180 / 2
	cr, sr := math.Cos(r), math.Sin(r)
	cp, sp := math.Cos(p), math.Sin(p)
	return Quaternion{
		W: cr * cp,
		X: sr * cp,
		Y: cr * sp,
		Z: -sr * sp,
	}
}

func frameTime(ts time.Time) FrameTime {
	return FrameTime{Sec: uint32(ts.Unix()), Nsec: uint32(ts.Nanosecond())}
}

func (s *Server) publishJSONToChannel(channelID uint64, ts time.Time, message any) {
	payload, err := json.Marshal(message)
	if err != nil {
		s.log.Warn().Err(err).Uint64("channel", channelID).Msg("encode message")
		return
	}

	logTime := uint64(ts.UnixNano())
	for _, c := range s.snapshotClients() {
		for _, subID := range c.subIDsForChannel(channelID) {
			c.trySend(EncodeMessageData(subID, logTime, payload))
		}
	}
}

func (s *Server) addClient(c *client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}

func (s *Server) snapshotClients() []*client {
	s.mu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()
	return clients
}

// closeClients drops hijacked connections, which http.Server.Shutdown leaves
// alone.
func (s *Server) closeClients() {
	for _, c := range s.snapshotClients() {
		c.close()
	}
}

func newClient(conn *websocket.Conn, sendBuf int) *client {
	if sendBuf <= 0 {
		sendBuf = DefaultConfig().SendBuf
	}
	return &client{
		conn: conn,
		send: make(chan []byte, sendBuf),
		subs: make(map[uint32]uint64),
	}
}

func (c *client) readLoop(supportedChannels map[uint64]struct{}) {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var header struct {
			Op string `json:"op"`
		}
		if err := json.Unmarshal(data, &header); err != nil {
			continue
		}

		switch header.Op {
		case OpSubscribe:
			var msg SubscribeMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			for _, sub := range msg.Subscriptions {
				if _, ok := supportedChannels[sub.ChannelID]; ok {
					c.addSub(sub.ID, sub.ChannelID)
				}
			}
		case OpUnsubscribe:
			var msg UnsubscribeMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			for _, id := range msg.SubscriptionIDs {
				c.removeSub(id)
			}
		}
	}
}

func (c *client) writeLoop() {
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
			c.close()
			return
		}
	}
}

// trySend drops msg when the client is behind. Sends racing close are
// recovered.
func (c *client) trySend(msg []byte) {
	defer func() {
		_ = recover()
	}()
	select {
	case c.send <- msg:
	default:
	}
}

func (c *client) addSub(id uint32, channelID uint64) {
	c.mu.Lock()
	c.subs[id] = channelID
	c.mu.Unlock()
}

func (c *client) removeSub(id uint32) {
	c.mu.Lock()
	delete(c.subs, id)
	c.mu.Unlock()
}

func (c *client) subIDsForChannel(channelID uint64) []uint32 {
	c.mu.RLock()
	ids := make([]uint32, 0, len(c.subs))
	for id, ch := range c.subs {
		if ch == channelID {
			ids = append(ids, id)
		}
	}
	c.mu.RUnlock()
	return ids
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
		_ = c.conn.Close()
	})
}
