// Package beatosc broadcasts every metronome beat as an OSC message so that lighting desks, DAWs
// or visualizers can follow along.
package beatosc

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/hypebeast/go-osc/osc"
	"github.com/robmorgan/metronome/config"
	"github.com/robmorgan/metronome/logger"
	"github.com/robmorgan/metronome/rhythm"
	"github.com/sirupsen/logrus"
)

const queueSize = 64

// Sender delivers an OSC packet. *osc.Client satisfies it.
type Sender interface {
	Send(packet osc.Packet) error
}

// Broadcaster turns ticks into OSC messages. OnTick only enqueues; the network write happens on
// the goroutine running Run so the scheduler never waits on a socket.
type Broadcaster struct {
	address string
	client  Sender
	queue   chan *osc.Message
	dropped atomic.Int64
}

// NewBroadcaster creates a broadcaster sending UDP packets to the host and port in cfg.
func NewBroadcaster(cfg config.OSCConfig) *Broadcaster {
	return newBroadcaster(osc.NewClient(cfg.Host, cfg.Port), cfg.Address, queueSize)
}

func newBroadcaster(client Sender, address string, size int) *Broadcaster {
	return &Broadcaster{
		address: address,
		client:  client,
		queue:   make(chan *osc.Message, size),
	}
}

// NewBeatMessage encodes tick as address,i,i,T|F,f: beat, measure length, downbeat and tempo.
func NewBeatMessage(address string, tick rhythm.Tick) *osc.Message {
	return osc.NewMessage(address,
		int32(tick.Beat),
		int32(tick.MeasureLength),
		tick.Downbeat,
		float32(tick.Tempo),
	)
}

// OnTick queues a message for tick. When the queue is full the beat is dropped.
func (b *Broadcaster) OnTick(tick rhythm.Tick) {
	select {
	case b.queue <- NewBeatMessage(b.address, tick):
	default:
		b.dropped.Add(1)
	}
}

// Dropped returns how many beats were discarded because the sender fell behind.
func (b *Broadcaster) Dropped() int64 {
	return b.dropped.Load()
}

// Run sends queued messages until ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context, wg *sync.WaitGroup) error {
	defer wg.Done()

	log := logger.GetProjectLogger().WithFields(logrus.Fields{"address": b.address})
	log.Info("OSC beat broadcast started")

	for {
		select {
		case <-ctx.Done():
			log.Info("OSC beat broadcast shutdown")
			return ctx.Err()
		case msg := <-b.queue:
			if err := b.client.Send(msg); err != nil {
				log.WithError(err).Debug("Failed to send beat")
			}
		}
	}
}
