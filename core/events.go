package core

// Sensor is sampled by the foreground loop to decide whether the key
// should be pressed.
type Sensor interface {
	Active() bool
}

// SensorFunc adapts a plain function to Sensor.
type SensorFunc func() bool

func (f SensorFunc) Active() bool { return f() }

// DefaultThreshold is the analog level a knock must exceed.
const DefaultThreshold = 10

// ThresholdSensor is active while an analog reading exceeds Threshold.
type ThresholdSensor struct {
	Read      func() uint16
	Threshold uint16
}

func (s *ThresholdSensor) Active() bool {
	return s.Read() > s.Threshold
}

// AnySensor is active when any of its members is.
type AnySensor []Sensor

func (a AnySensor) Active() bool {
	for _, s := range a {
		if s != nil && s.Active() {
			return true
		}
	}
	return false
}

// KnockPolicy configures how sensor activity turns into key presses.
type KnockPolicy struct {
	Required    uint8  // knocks needed inside one window
	Window      uint32 // ms from the first knock of a series
	MinInterval uint32 // ms a knock must be apart from the previous one
}

// DefaultKnockPolicy returns three knocks within three seconds, at least
// half a second apart.
func DefaultKnockPolicy() KnockPolicy {
	return KnockPolicy{
		Required:    3,
		Window:      3000,
		MinInterval: 500,
	}
}

// KnockCounter turns a stream of sensor samples into triggers.
type KnockCounter struct {
	policy      KnockPolicy
	count       uint8
	windowStart uint32
	last        uint32
	seen        bool
}

// NewKnockCounter creates a counter using policy. Zero fields fall back to
// the defaults.
func NewKnockCounter(policy KnockPolicy) *KnockCounter {
	def := DefaultKnockPolicy()
	if policy.Required == 0 {
		policy.Required = def.Required
	}
	if policy.Window == 0 {
		policy.Window = def.Window
	}
	if policy.MinInterval == 0 {
		policy.MinInterval = def.MinInterval
	}
	return &KnockCounter{policy: policy}
}

// Sample feeds one reading taken at now and reports whether it completed a
// series. Readings closer than MinInterval to the previous knock are part
// of that knock and are ignored.
func (k *KnockCounter) Sample(active bool, now uint32) bool {
	if !active {
		return false
	}
	if k.seen && now-k.last < k.policy.MinInterval {
		return false
	}
	k.seen = true
	k.last = now

	if k.count == 0 || now-k.windowStart > k.policy.Window {
		k.count = 1
		k.windowStart = now
	} else {
		k.count++
	}

	if k.count >= k.policy.Required {
		k.count = 0
		return true
	}
	return false
}

// Count returns the knocks counted in the current window.
func (k *KnockCounter) Count() uint8 {
	return k.count
}

// Reset forgets any partial series.
func (k *KnockCounter) Reset() {
	k.count = 0
	k.seen = false
}

// Policy returns the active policy.
func (k *KnockCounter) Policy() KnockPolicy {
	return k.policy
}
