package telemetry

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"
)

type PacketHandler interface {
	OnPacket(header PacketHeader, p *Packet) error
	PacketID() PacketID
}

type ReceiverConfig struct {
	Address        string        `json:"address" yaml:"address"`
	Port           uint16        `json:"port" yaml:"port"`
	ReadBufferSize int           `json:"read_buffer_size" yaml:"read_buffer_size"`
	StatsInterval  time.Duration `json:"stats_interval" yaml:"stats_interval"`
}

const defaultReadBufferSize = 2048

// Receiver listens for telemetry packets and dispatches them to its plugin.
type Receiver struct {
	config ReceiverConfig
	logger Logger
	plugin Plugin

	messageHandlers map[PacketID]PacketHandler
	stats           *Statistics

	packetConn *net.UDPConn

	// only accessed from the read loop
	sessionUID uint64
}

func NewReceiver(config ReceiverConfig, plugin Plugin, logger Logger) *Receiver {
	if plugin == nil {
		plugin = nilPlugin{}
	}

	if config.ReadBufferSize <= 0 {
		config.ReadBufferSize = defaultReadBufferSize
	}

	r := &Receiver{
		config:          config,
		logger:          logger,
		plugin:          plugin,
		messageHandlers: make(map[PacketID]PacketHandler),
		stats:           &Statistics{},
	}

	r.initMessageHandlers()

	return r
}

func (r *Receiver) initMessageHandlers() {
	messageHandlers := []PacketHandler{
		NewSessionPacketHandler(r.plugin),
		NewLapDataPacketHandler(r.plugin),
		NewParticipantsPacketHandler(r.plugin),
		NewCarTelemetryPacketHandler(r.plugin),
		NewCarStatusPacketHandler(r.plugin),
	}

	for _, handler := range messageHandlers {
		r.messageHandlers[handler.PacketID()] = handler
	}
}

func (r *Receiver) Statistics() *Statistics {
	return r.stats
}

// Bind opens the UDP socket. It is called by Listen, and is separate so the bound address is known before serving.
func (r *Receiver) Bind() error {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", r.config.Address, r.config.Port))

	if err != nil {
		return errors.Wrap(err, "telemetry: could not resolve listen address")
	}

	r.packetConn, err = net.ListenUDP("udp", addr)

	if err != nil {
		return errors.Wrapf(err, "telemetry: could not listen on %s", addr)
	}

	return nil
}

func (r *Receiver) LocalAddr() net.Addr {
	if r.packetConn == nil {
		return nil
	}

	return r.packetConn.LocalAddr()
}

func (r *Receiver) Listen(ctx context.Context) error {
	if err := r.Bind(); err != nil {
		return err
	}

	return r.Serve(ctx)
}

func (r *Receiver) Serve(ctx context.Context) error {
	if r.packetConn == nil {
		return errors.New("telemetry: receiver is not bound")
	}

	if err := r.plugin.Init(r.logger); err != nil {
		return errors.Wrap(err, "telemetry: could not initialise plugin")
	}

	r.logger.Infof("UDP telemetry receiver listening on: %s", r.packetConn.LocalAddr())

	if r.config.StatsInterval > 0 {
		go r.stats.Log(ctx, r.config.StatsInterval, r.logger)
	}

	go func() {
		buf := make([]byte, r.config.ReadBufferSize)

		for {
			n, _, err := r.packetConn.ReadFrom(buf)

			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
					r.logger.WithError(err).Error("could not read from udp buffer")
					continue
				}
			}

			if err := r.handlePacket(buf[:n]); err != nil {
				r.stats.packetError()
				r.logger.WithError(err).Debug("could not handle telemetry packet")
				continue
			}
		}
	}()

	<-ctx.Done()
	r.logger.Infof("Closing UDP telemetry receiver")

	return r.packetConn.Close()
}

func (r *Receiver) handlePacket(b []byte) error {
	p := NewPacket(b)

	header, err := ReadHeader(p)

	if err != nil {
		return err
	}

	r.stats.packetReceived(header.PacketID, len(b))

	if header.SessionUID != 0 && header.SessionUID != r.sessionUID {
		r.logger.Infof("New session detected: %x (previously %x)", header.SessionUID, r.sessionUID)
		r.sessionUID = header.SessionUID

		if err := r.plugin.OnNewSession(header); err != nil {
			return errors.Wrap(err, "new session plugin returned an error")
		}
	}

	messageHandler, ok := r.messageHandlers[header.PacketID]

	if !ok {
		return nil
	}

	if err := messageHandler.OnPacket(header, p); err != nil {
		return errors.Wrapf(err, "could not handle %s packet (len: %d)", header.PacketID, len(b))
	}

	return nil
}
