package idgen

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

const (
	timestampBits = 41
	machineIDBits = 10
	sequenceBits  = 12

	maxMachineID = (1 << machineIDBits) - 1 // 1023
	maxSequence  = (1 << sequenceBits) - 1  // 4095

	machineIDShift = sequenceBits
	timestampShift = sequenceBits + machineIDBits
)

// Snowflake generates time-ordered 64-bit ids rendered as decimal strings.
// Ids from one generator are strictly increasing.
type Snowflake struct {
	mu        sync.Mutex
	epoch     int64 // custom epoch in ms
	machineID int64
	sequence  int64
	lastTime  int64
	now       func() int64
}

// NewSnowflake creates a generator. machineID must be in [0, 1023] and epoch
// is in unix milliseconds.
func NewSnowflake(machineID int64, epoch int64) (*Snowflake, error) {
	if machineID < 0 || machineID > maxMachineID {
		return nil, fmt.Errorf("machine_id must be between 0 and %d, got %d", maxMachineID, machineID)
	}
	return &Snowflake{
		epoch:     epoch,
		machineID: machineID,
		now:       func() int64 { return time.Now().UnixMilli() },
	}, nil
}

func (g *Snowflake) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if now-g.epoch < 0 {
		return "", fmt.Errorf("current time is before custom epoch")
	}

	// Small clock regressions reuse the last timestamp instead of failing a send.
	if now < g.lastTime {
		now = g.lastTime
	}

	if now == g.lastTime {
		g.sequence = (g.sequence + 1) & maxSequence
		if g.sequence == 0 {
			for now <= g.lastTime {
				time.Sleep(100 * time.Microsecond)
				now = g.now()
			}
		}
	} else {
		g.sequence = 0
	}

	g.lastTime = now

	id := ((now - g.epoch) << timestampShift) | (g.machineID << machineIDShift) | g.sequence
	return strconv.FormatInt(id, 10), nil
}

// Timestamp extracts the creation time encoded in id.
func (g *Snowflake) Timestamp(id string) (time.Time, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n < 0 {
		return time.Time{}, fmt.Errorf("invalid snowflake id %q", id)
	}
	ts := (n >> timestampShift) & ((1 << timestampBits) - 1)
	return time.UnixMilli(ts + g.epoch), nil
}
