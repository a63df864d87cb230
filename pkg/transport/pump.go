// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	gwerrors "github.com/absmach/hivegate/pkg/errors"
	"github.com/absmach/hivegate/pkg/frame"
	"github.com/absmach/hivegate/pkg/metrics"
	"github.com/gorilla/websocket"
)

// Mode selects how frames with an unknown event name are handled.
type Mode int

const (
	// ModeLenient drops frames with an unknown event name.
	ModeLenient Mode = iota
	// ModeStrict fails the pump on frames with an unknown event name.
	ModeStrict
)

func (m Mode) String() string {
	if m == ModeStrict {
		return "strict"
	}
	return "lenient"
}

// ParseMode parses "lenient" or "strict". An empty string means lenient.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lenient":
		return ModeLenient, nil
	case "strict":
		return ModeStrict, nil
	default:
		return ModeLenient, fmt.Errorf("invalid parse mode %q", s)
	}
}

// Socket is the subset of *websocket.Conn used by the pump.
type Socket interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

var _ Socket = (*websocket.Conn)(nil)

// Config configures a Pump.
type Config struct {
	Mode Mode

	// WriteTimeout bounds each socket write when the socket supports
	// deadlines. Zero disables it.
	WriteTimeout time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Pump relays frames between a socket and two queues.
type Pump struct {
	sock    Socket
	mode    Mode
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a pump for sock.
func New(sock Socket, cfg Config) *Pump {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Pump{
		sock:    sock,
		mode:    cfg.Mode,
		timeout: cfg.WriteTimeout,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
}

type message struct {
	typ  int
	data []byte
	err  error
}

// Run relays frames until the socket closes, a fatal error occurs, the
// outbound queue is closed or ctx is done. It closes inbound and the socket
// before returning.
func (p *Pump) Run(ctx context.Context, inbound chan<- frame.Frame, outbound <-chan frame.Outbound) error {
	defer close(inbound)

	reads := make(chan message)
	quit := make(chan struct{})
	readerDone := make(chan struct{})
	go p.readLoop(reads, quit, readerDone)

	defer func() {
		close(quit)
		p.shutdown()
		<-readerDone
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-reads:
			if done, err := p.handleMessage(ctx, msg, inbound); done {
				return err
			}
		case f, ok := <-outbound:
			if !ok {
				p.logger.Debug("Outbound queue closed")
				return nil
			}
			if err := p.write(f); err != nil {
				if errors.Is(err, websocket.ErrCloseSent) || errors.Is(err, net.ErrClosed) {
					return nil
				}
				return err
			}
		}
	}
}

func (p *Pump) readLoop(reads chan<- message, quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		typ, data, err := p.sock.ReadMessage()
		select {
		case reads <- message{typ: typ, data: data, err: err}:
		case <-quit:
			return
		}
		if err != nil {
			return
		}
	}
}

// handleMessage processes one socket read. It reports whether the pump must
// stop and with which result.
func (p *Pump) handleMessage(ctx context.Context, msg message, inbound chan<- frame.Frame) (bool, error) {
	if msg.err != nil {
		var ce *websocket.CloseError
		if errors.As(msg.err, &ce) {
			p.logger.Info("Gateway closed the connection",
				slog.Int("code", ce.Code),
				slog.String("reason", ce.Text))
			return true, &gwerrors.SocketClosedError{Code: ce.Code, Reason: ce.Text}
		}
		return true, gwerrors.Wrap(msg.err, "read")
	}

	switch msg.typ {
	case websocket.TextMessage:
	case websocket.CloseMessage:
		return true, parseClose(msg.data)
	default:
		return true, gwerrors.Expectation("unexpected %s message", messageType(msg.typ))
	}

	f, err := frame.Decode(msg.data)
	if err != nil {
		if p.mode == ModeLenient && errors.Is(err, frame.ErrUnknownEvent) {
			p.logger.Debug("Dropping frame with unknown event", slog.Any("error", err))
			if p.metrics != nil {
				p.metrics.FramesDropped.WithLabelValues("unknown_event").Inc()
			}
			return false, nil
		}
		return true, err
	}

	select {
	case inbound <- f:
		if p.metrics != nil {
			p.metrics.Frame(f.Opcode().String(), metrics.Inbound)
		}
		return false, nil
	case <-ctx.Done():
		return true, nil
	}
}

func (p *Pump) write(f frame.Outbound) error {
	data, err := frame.Encode(f)
	if err != nil {
		return err
	}

	if d, ok := p.sock.(writeDeadliner); ok && p.timeout > 0 {
		if err := d.SetWriteDeadline(time.Now().Add(p.timeout)); err != nil {
			return gwerrors.Wrap(err, "set write deadline")
		}
	}
	if err := p.sock.WriteMessage(websocket.TextMessage, data); err != nil {
		return gwerrors.Wrap(err, "write")
	}
	if p.metrics != nil {
		p.metrics.Frame(f.Opcode().String(), metrics.Outbound)
	}

	return nil
}

// shutdown sends a best-effort normal close frame and closes the socket.
func (p *Pump) shutdown() {
	if d, ok := p.sock.(writeDeadliner); ok {
		_ = d.SetWriteDeadline(time.Now().Add(time.Second))
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = p.sock.WriteMessage(websocket.CloseMessage, msg)
	if err := p.sock.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		p.logger.Debug("Failed to close socket", slog.Any("error", err))
	}
}

func parseClose(data []byte) error {
	if len(data) < 2 {
		return &gwerrors.SocketClosedError{Code: websocket.CloseNoStatusReceived}
	}
	return &gwerrors.SocketClosedError{
		Code:   int(binary.BigEndian.Uint16(data)),
		Reason: string(data[2:]),
	}
}

func messageType(t int) string {
	switch t {
	case websocket.TextMessage:
		return "text"
	case websocket.BinaryMessage:
		return "binary"
	case websocket.CloseMessage:
		return "close"
	case websocket.PingMessage:
		return "ping"
	case websocket.PongMessage:
		return "pong"
	default:
		return fmt.Sprintf("type %d", t)
	}
}
