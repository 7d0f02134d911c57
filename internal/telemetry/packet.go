package telemetry

import (
	"bytes"
	"encoding/binary"
	"math"
)

type Packet struct {
	buf *bytes.Buffer
}

func NewPacket(b []byte) *Packet {
	return &Packet{
		buf: bytes.NewBuffer(b),
	}
}

// Read reads a fixed size value (or struct of fixed size values) from the packet.
func (p *Packet) Read(out interface{}) error {
	if size := binary.Size(out); size < 0 || size > p.buf.Len() {
		return ErrShortPacket
	}

	return binary.Read(p.buf, binary.LittleEndian, out)
}

func (p *Packet) Len() int {
	return p.buf.Len()
}

func (p *Packet) Skip(n int) error {
	if n > p.buf.Len() {
		return ErrShortPacket
	}

	p.buf.Next(n)

	return nil
}

func (p *Packet) ReadUint8() uint8 {
	var i uint8

	_ = p.Read(&i)

	return i
}

func (p *Packet) ReadInt8() int8 {
	var i int8

	_ = p.Read(&i)

	return i
}

func (p *Packet) ReadUint16() uint16 {
	var i uint16

	_ = p.Read(&i)

	return i
}

func (p *Packet) ReadUint32() uint32 {
	var i uint32

	_ = p.Read(&i)

	return i
}

func (p *Packet) ReadFloat32() float32 {
	var i uint32

	_ = p.Read(&i)

	return math.Float32frombits(i)
}

// Write is used to build packets in tests and the feed checker.
func (p *Packet) Write(val interface{}) {
	_ = binary.Write(p.buf, binary.LittleEndian, val)
}

func (p *Packet) Bytes() []byte {
	return p.buf.Bytes()
}
