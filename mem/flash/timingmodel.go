package flash

import (
	"github.com/babyworm/MQSim-CXL/sim/timing"
)

// TimingModel tracks when each die and each channel becomes free. Array
// operations occupy a die. Data transfers occupy the channel of the die.
// Operations on different dies overlap in time.
type TimingModel struct {
	Geometry  Geometry
	Latencies Latencies

	// Transfer is the time to move one page over a channel.
	Transfer timing.VTime

	dieFree     []timing.VTime
	channelFree []timing.VTime
}

// NewTimingModel creates a TimingModel with every resource idle.
func NewTimingModel(
	g Geometry,
	l Latencies,
	transfer timing.VTime,
) *TimingModel {
	return &TimingModel{
		Geometry:    g,
		Latencies:   l,
		Transfer:    transfer,
		dieFree:     make([]timing.VTime, g.NumDies()),
		channelFree: make([]timing.VTime, g.Channels),
	}
}

func maxTime(a, b timing.VTime) timing.VTime {
	if a > b {
		return a
	}

	return b
}

func (m *TimingModel) occupyDie(die int, now, d timing.VTime) timing.VTime {
	start := maxTime(now, m.dieFree[die])
	m.dieFree[die] = start + d

	return m.dieFree[die]
}

func (m *TimingModel) occupyChannel(ch int, now timing.VTime) timing.VTime {
	start := maxTime(now, m.channelFree[ch])
	m.channelFree[ch] = start + m.Transfer

	return m.channelFree[ch]
}

// Read senses a page and moves it out over the channel. It returns the time
// the data is available.
func (m *TimingModel) Read(a PhysicalAddress, now timing.VTime) timing.VTime {
	sensed := m.occupyDie(m.Geometry.DieIndex(a), now, m.Latencies.Read)
	return m.occupyChannel(a.Channel, sensed)
}

// Program moves a page in over the channel and programs it. It returns the
// time the program finishes.
func (m *TimingModel) Program(a PhysicalAddress, now timing.VTime) timing.VTime {
	arrived := m.occupyChannel(a.Channel, now)
	return m.occupyDie(m.Geometry.DieIndex(a), arrived, m.Latencies.Program)
}

// Erase erases a block. It returns the time the erase finishes.
func (m *TimingModel) Erase(a PhysicalAddress, now timing.VTime) timing.VTime {
	return m.occupyDie(m.Geometry.DieIndex(a), now, m.Latencies.Erase)
}

// DieFreeAt returns when the die that holds the address becomes idle.
func (m *TimingModel) DieFreeAt(a PhysicalAddress) timing.VTime {
	return m.dieFree[m.Geometry.DieIndex(a)]
}

// Reset marks every resource idle.
func (m *TimingModel) Reset() {
	for i := range m.dieFree {
		m.dieFree[i] = 0
	}

	for i := range m.channelFree {
		m.channelFree[i] = 0
	}
}
