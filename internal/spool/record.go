package spool

import (
	"encoding/binary"
	"fmt"
	"time"
)

// FramingOverheadBytes is the fixed per-record framing constant added to
// payload and topic length to produce Record.SizeBytes (spec §3).
const FramingOverheadBytes = 24

// QoS is the MQTT quality-of-service level of a queued publish.
type QoS byte

const (
	QoS0 QoS = 0
	QoS1 QoS = 1
	QoS2 QoS = 2
)

// Record is a single outbound publish awaiting delivery (spec §3
// PublishRecord). Id is assigned by the spool on admission and is
// monotonically increasing for the lifetime of the process.
type Record struct {
	ID         uint64
	Topic      string
	Payload    []byte
	QoS        QoS
	Retain     bool
	Attempts   uint32
	EnqueuedAt time.Time
	SizeBytes  uint64
}

// NewRecord computes SizeBytes from the topic and payload and returns a
// Record ready for Spool.Admit (the id field is left zero; Admit
// assigns it).
func NewRecord(topic string, payload []byte, qos QoS, retain bool) *Record {
	return &Record{
		Topic:      topic,
		Payload:    payload,
		QoS:        qos,
		Retain:     retain,
		EnqueuedAt: time.Now(),
		SizeBytes:  uint64(len(payload)) + uint64(len(topic)) + FramingOverheadBytes,
	}
}

// clone returns a deep copy so callers cannot mutate the spool's
// internal state through a pointer returned by Get.
func (r *Record) clone() *Record {
	cp := *r
	cp.Payload = append([]byte(nil), r.Payload...)
	return &cp
}

// MarshalBinary encodes the record for durable storage. The layout is
// deliberately simple and fixed-order rather than using encoding/gob,
// so that the on-disk format doesn't depend on type registration.
func (r *Record) MarshalBinary() ([]byte, error) {
	topic := []byte(r.Topic)
	buf := make([]byte, 0, 8+4+len(topic)+4+len(r.Payload)+1+1+4+8+8)

	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], r.ID)
	buf = append(buf, tmp[:]...)

	binary.BigEndian.PutUint32(tmp[:4], uint32(len(topic)))
	buf = append(buf, tmp[:4]...)
	buf = append(buf, topic...)

	binary.BigEndian.PutUint32(tmp[:4], uint32(len(r.Payload)))
	buf = append(buf, tmp[:4]...)
	buf = append(buf, r.Payload...)

	buf = append(buf, byte(r.QoS))

	var retain byte
	if r.Retain {
		retain = 1
	}
	buf = append(buf, retain)

	binary.BigEndian.PutUint32(tmp[:4], r.Attempts)
	buf = append(buf, tmp[:4]...)

	binary.BigEndian.PutUint64(tmp[:], uint64(r.EnqueuedAt.UnixNano()))
	buf = append(buf, tmp[:]...)

	binary.BigEndian.PutUint64(tmp[:], r.SizeBytes)
	buf = append(buf, tmp[:]...)

	return buf, nil
}

// UnmarshalBinary decodes a record previously encoded with MarshalBinary.
func (r *Record) UnmarshalBinary(data []byte) error {
	read := func(n int) ([]byte, error) {
		if len(data) < n {
			return nil, fmt.Errorf("spool: truncated record, need %d bytes, have %d", n, len(data))
		}
		chunk := data[:n]
		data = data[n:]
		return chunk, nil
	}

	idBytes, err := read(8)
	if err != nil {
		return err
	}
	r.ID = binary.BigEndian.Uint64(idBytes)

	tLenBytes, err := read(4)
	if err != nil {
		return err
	}
	tLen := binary.BigEndian.Uint32(tLenBytes)

	topicBytes, err := read(int(tLen))
	if err != nil {
		return err
	}
	r.Topic = string(topicBytes)

	pLenBytes, err := read(4)
	if err != nil {
		return err
	}
	pLen := binary.BigEndian.Uint32(pLenBytes)

	payloadBytes, err := read(int(pLen))
	if err != nil {
		return err
	}
	r.Payload = append([]byte(nil), payloadBytes...)

	qosByte, err := read(1)
	if err != nil {
		return err
	}
	r.QoS = QoS(qosByte[0])

	retainByte, err := read(1)
	if err != nil {
		return err
	}
	r.Retain = retainByte[0] == 1

	attemptsBytes, err := read(4)
	if err != nil {
		return err
	}
	r.Attempts = binary.BigEndian.Uint32(attemptsBytes)

	enqueuedBytes, err := read(8)
	if err != nil {
		return err
	}
	r.EnqueuedAt = time.Unix(0, int64(binary.BigEndian.Uint64(enqueuedBytes)))

	sizeBytes, err := read(8)
	if err != nil {
		return err
	}
	r.SizeBytes = binary.BigEndian.Uint64(sizeBytes)

	return nil
}
