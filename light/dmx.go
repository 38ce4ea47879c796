package light

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robmorgan/metronome/logger"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"
)

// UniverseChannels is the number of channels in one DMX512 universe.
const UniverseChannels = 512

// DMXState holds the DMX512 values for each channel
type DMXState struct {
	universes map[int][]byte
	lock      sync.Mutex
}

func NewDMXState() *DMXState {
	return &DMXState{universes: make(map[int][]byte)}
}

// Set writes value to a 1-based channel of universe.
func (s *DMXState) Set(universe, channel int, value byte) error {
	if channel < 1 || channel > UniverseChannels {
		return fmt.Errorf("dmx channel (%d) not in range", channel)
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	s.initializeUniverse(universe)
	s.universes[universe][channel-1] = value
	return nil
}

// Get returns the value of a 1-based channel, or 0 for a universe that was never written.
func (s *DMXState) Get(universe, channel int) byte {
	s.lock.Lock()
	defer s.lock.Unlock()
	values, ok := s.universes[universe]
	if !ok || channel < 1 || channel > UniverseChannels {
		return 0
	}
	return values[channel-1]
}

// Snapshot copies every universe so it can be sent without holding the lock.
func (s *DMXState) Snapshot() map[int][]byte {
	s.lock.Lock()
	defer s.lock.Unlock()

	out := make(map[int][]byte, len(s.universes))
	for k, v := range s.universes {
		out[k] = append([]byte(nil), v...)
	}
	return out
}

func (s *DMXState) initializeUniverse(universe int) {
	if s.universes[universe] == nil {
		s.universes[universe] = make([]byte, UniverseChannels)
	}
}

// OLAClient is the interface for communicating with OLA
type OLAClient interface {
	SendDmx(universe int, values []byte) (status bool, err error)
	Close()
}

// Frame is called by SendDMXWorker before each send to bring the state up to date.
type Frame func(now time.Time)

// SendDMXWorker pushes the DMX state of every universe to OLA at a fixed rate until ctx is done.
func SendDMXWorker(ctx context.Context, client OLAClient, clk clock.Clock, tick time.Duration, state *DMXState, frame Frame, wg *sync.WaitGroup) error {
	defer wg.Done()
	defer client.Close()

	log := logger.GetProjectLogger()

	t := clk.NewTimer(tick)
	defer t.Stop()
	log.WithFields(logrus.Fields{"interval": tick}).Info("DMX worker started")

	for {
		select {
		case <-ctx.Done():
			log.Info("DMX worker shutdown")
			return ctx.Err()
		case <-t.C():
			if frame != nil {
				frame(clk.Now())
			}
			for universe, values := range state.Snapshot() {
				if _, err := client.SendDmx(universe, values); err != nil {
					log.WithError(err).WithFields(logrus.Fields{"universe": universe}).Debug("Failed to send DMX")
				}
			}
			t.Reset(tick)
		}
	}
}
