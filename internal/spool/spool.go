package spool

import (
	"container/list"
	"context"
	"sync"

	"github.com/aws-greengrass/mqttclient/internal/apperr"
)

// StorageType selects whether the spool is backed by a Store or kept
// purely in memory (spec §6).
type StorageType int

const (
	StorageMemory StorageType = iota
	StoragePersistent
)

// Config mirrors spec §3's SpoolerConfig.
type Config struct {
	KeepQoS0WhenOffline bool
	MaxRetries          uint32
	MaxBytes            uint64
	Storage             StorageType

	// Store backs StoragePersistent mode. Required when Storage ==
	// StoragePersistent; ignored otherwise.
	Store Store
}

type entry struct {
	rec  *Record
	elem *list.Element // nil while popped ("in flight"), non-nil while queued
	qos0 bool
}

// Spool is the ordered, byte-bounded outbound publish queue (spec
// §4.B). A single mutex guards both queues and the byte counter, per
// the concurrency discipline in spec §5(i).
type Spool struct {
	mu sync.Mutex

	qos0 *list.List
	qos1 *list.List
	byID map[uint64]*entry

	totalBytes uint64
	nextID     uint64

	cfg    Config
	store  Store
	closed bool

	notify chan struct{}
}

// New creates a Spool. If cfg.Storage is StoragePersistent, any records
// left over from a previous process are recovered in ascending id
// order and re-admitted without re-validating topic rules (spec §9);
// the spool's own id counter resumes after the highest recovered id.
func New(cfg Config) (*Spool, error) {
	store := cfg.Store
	if cfg.Storage == StorageMemory || store == nil {
		store = NullStore{}
	}

	s := &Spool{
		qos0:   list.New(),
		qos1:   list.New(),
		byID:   make(map[uint64]*entry),
		cfg:    cfg,
		store:  store,
		notify: make(chan struct{}),
	}

	recovered, err := store.LoadAll()
	if err != nil {
		return nil, err
	}

	for _, rec := range recovered {
		s.insertLocked(rec, false)
		if rec.ID > s.nextID {
			s.nextID = rec.ID
		}
	}

	return s, nil
}

func (s *Spool) wakeLocked() {
	close(s.notify)
	s.notify = make(chan struct{})
}

func (s *Spool) insertLocked(rec *Record, persist bool) {
	e := &entry{rec: rec, qos0: rec.QoS == QoS0}

	var target *list.List
	if e.qos0 {
		target = s.qos0
	} else {
		target = s.qos1
	}
	e.elem = target.PushBack(e)

	s.byID[rec.ID] = e
	s.totalBytes += rec.SizeBytes

	if persist {
		_ = s.store.Save(rec) // persistence failure degrades to memory-only; caller already has the id
	}
}

// evictOldestQoS0Locked drops the oldest queued QoS0 record, if any,
// returning true if a record was evicted. In-flight (already-popped)
// records are never evicted: they are no longer queued.
func (s *Spool) evictOldestQoS0Locked() bool {
	front := s.qos0.Front()
	if front == nil {
		return false
	}

	e := front.Value.(*entry)
	s.qos0.Remove(front)
	delete(s.byID, e.rec.ID)
	s.totalBytes -= e.rec.SizeBytes
	_ = s.store.Delete(e.rec.ID)

	return true
}

// Admit assigns rec a new id and admits it to the spool, evicting
// oldest QoS0 records as needed to stay within Config.MaxBytes (spec
// §4.B, invariants I1/I2). Only QoS0 records are ever evicted to make
// room: QoS1+ records are never sacrificed for a newer publish.
func (s *Spool) Admit(rec *Record) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, apperr.New(apperr.Closed, "spool is closed")
	}

	if rec.SizeBytes > s.cfg.MaxBytes {
		return 0, apperr.New(apperr.TooLarge, "record cannot fit within the configured byte budget").
			With("size_bytes", rec.SizeBytes).With("max_bytes", s.cfg.MaxBytes)
	}

	for s.totalBytes+rec.SizeBytes > s.cfg.MaxBytes {
		if !s.evictOldestQoS0Locked() {
			break
		}
	}

	if s.totalBytes+rec.SizeBytes > s.cfg.MaxBytes {
		if rec.QoS == QoS0 {
			return 0, apperr.New(apperr.Offline, "qos0 publish dropped: spool full").
				With("topic", rec.Topic)
		}
		return 0, apperr.New(apperr.Full, "spool is full").With("topic", rec.Topic)
	}

	s.nextID++
	rec.ID = s.nextID

	s.insertLocked(rec, true)
	s.wakeLocked()

	return rec.ID, nil
}

// peekNextLocked returns the smaller of the two queues' front ids.
// Equal ids across queues cannot occur since ids are assigned from a
// single monotonically increasing counter.
func (s *Spool) peekNextLocked() (uint64, bool) {
	q0 := s.qos0.Front()
	q1 := s.qos1.Front()

	switch {
	case q0 == nil && q1 == nil:
		return 0, false
	case q0 == nil:
		return q1.Value.(*entry).rec.ID, true
	case q1 == nil:
		return q0.Value.(*entry).rec.ID, true
	default:
		id0 := q0.Value.(*entry).rec.ID
		id1 := q1.Value.(*entry).rec.ID
		if id0 < id1 {
			return id0, true
		}
		return id1, true
	}
}

// PopNextID blocks until a record is available and returns the
// smallest id across the QoS0 and QoS1+ queues, detaching it from its
// queue ("in flight") until Remove or Requeue is called for it. It
// unblocks with a Closed error if the spool is closed, or a Timeout
// error wrapping ctx's error if ctx is done first.
func (s *Spool) PopNextID(ctx context.Context) (uint64, error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return 0, apperr.New(apperr.Closed, "spool is closed")
		}

		if id, ok := s.peekNextLocked(); ok {
			e := s.byID[id]
			if e.qos0 {
				s.qos0.Remove(e.elem)
			} else {
				s.qos1.Remove(e.elem)
			}
			e.elem = nil
			s.mu.Unlock()
			return id, nil
		}

		wake := s.notify
		s.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return 0, apperr.Wrap(apperr.Timeout, "pop_next_id canceled", ctx.Err())
		}
	}
}

// Get peeks the record for id without removing it. The returned
// pointer is a copy; mutating it has no effect on the spool.
func (s *Spool) Get(id uint64) (*Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return e.rec.clone(), true
}

// Remove releases id after a successful delivery or terminal failure.
// It is idempotent: removing an unknown or already-removed id is a
// no-op (spec §4.B "Failure semantics").
func (s *Spool) Remove(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[id]
	if !ok {
		return nil
	}

	if e.elem != nil {
		if e.qos0 {
			s.qos0.Remove(e.elem)
		} else {
			s.qos1.Remove(e.elem)
		}
	}

	delete(s.byID, id)
	s.totalBytes -= e.rec.SizeBytes

	return s.store.Delete(id)
}

// Requeue returns id to the front of its queue and increments its
// attempts counter, making it available again to PopNextID. Requeuing
// an unknown id is a no-op.
func (s *Spool) Requeue(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[id]
	if !ok {
		return nil
	}

	e.rec.Attempts++

	if e.qos0 {
		e.elem = s.qos0.PushFront(e)
	} else {
		e.elem = s.qos1.PushFront(e)
	}

	if err := s.store.Save(e.rec); err != nil {
		return err
	}

	s.wakeLocked()
	return nil
}

// DropQoS0OnDisconnect removes every QoS0 record (queued or in flight)
// when Config.KeepQoS0WhenOffline is false, returning the dropped
// records so callers can fail their pending futures (spec §4.B, §4.F
// "Connectivity transitions"). It is a no-op when
// Config.KeepQoS0WhenOffline is true.
func (s *Spool) DropQoS0OnDisconnect() []*Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.KeepQoS0WhenOffline {
		return nil
	}

	var dropped []*Record

	for id, e := range s.byID {
		if !e.qos0 {
			continue
		}
		if e.elem != nil {
			s.qos0.Remove(e.elem)
		}
		dropped = append(dropped, e.rec)
		delete(s.byID, id)
		s.totalBytes -= e.rec.SizeBytes
		_ = s.store.Delete(id)
	}

	return dropped
}

// Len returns the number of records currently held per queue, for
// tests and diagnostics.
func (s *Spool) Len() (qos0, qos1Plus int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.byID {
		if e.qos0 {
			qos0++
		} else {
			qos1Plus++
		}
	}
	return qos0, qos1Plus
}

// TotalBytes returns the current byte usage against Config.MaxBytes.
func (s *Spool) TotalBytes() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalBytes
}

// Close marks the spool closed: pending and future PopNextID calls
// return a Closed error, and the underlying store is released.
func (s *Spool) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.wakeLocked()
	s.mu.Unlock()

	return s.store.Close()
}
