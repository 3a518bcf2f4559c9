package subscription

import (
	"errors"
	"fmt"
	"strings"
)

// Policy errors.
var (
	ErrInvalidPolicy   = errors.New("invalid subscription policy")
	ErrInvalidOverflow = errors.New("invalid overflow policy")
)

// Policy defaults.
const (
	DefaultReplay   = 0
	DefaultCapacity = 1
)

// Overflow selects what happens when a listener's buffer is full.
type Overflow uint8

const (
	// DropOldest discards the oldest buffered value.
	DropOldest Overflow = iota

	// DropLatest discards the value being published.
	DropLatest

	// Block makes the publisher wait for buffer space.
	Block
)

// String returns the policy name as accepted by ParseOverflow.
func (o Overflow) String() string {
	switch o {
	case DropOldest:
		return "drop-oldest"
	case DropLatest:
		return "drop-latest"
	case Block:
		return "block"
	default:
		return "unknown"
	}
}

// ParseOverflow parses an overflow policy name. Matching is
// case-insensitive and treats '_' like '-'.
func ParseOverflow(s string) (Overflow, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-") {
	case "drop-oldest":
		return DropOldest, nil
	case "drop-latest":
		return DropLatest, nil
	case "block", "suspend":
		return Block, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidOverflow, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Overflow) MarshalText() ([]byte, error) {
	if o > Block {
		return nil, fmt.Errorf("%w: %d", ErrInvalidOverflow, uint8(o))
	}
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Overflow) UnmarshalText(text []byte) error {
	v, err := ParseOverflow(string(text))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// Policy configures buffering for every listener of a subscription.
type Policy struct {
	// Replay is the number of most recent values delivered to new listeners.
	Replay int `yaml:"replay"`

	// Capacity is the per-listener buffer size beyond the replayed values.
	Capacity int `yaml:"capacity"`

	// Overflow applies when a listener's buffer is full.
	Overflow Overflow `yaml:"overflow"`
}

// DefaultPolicy returns the default policy: no replay, one buffered value,
// drop oldest.
func DefaultPolicy() Policy {
	return Policy{
		Replay:   DefaultReplay,
		Capacity: DefaultCapacity,
		Overflow: DropOldest,
	}
}

// Validate checks the policy.
func (p Policy) Validate() error {
	if p.Replay < 0 || p.Capacity < 0 {
		return fmt.Errorf("%w: negative size (replay %d, capacity %d)", ErrInvalidPolicy, p.Replay, p.Capacity)
	}
	if p.Replay+p.Capacity == 0 {
		return fmt.Errorf("%w: replay and capacity are both zero", ErrInvalidPolicy)
	}
	if p.Overflow > Block {
		return fmt.Errorf("%w: %w", ErrInvalidPolicy, ErrInvalidOverflow)
	}
	return nil
}

// BufferSize returns the per-listener buffer size.
func (p Policy) BufferSize() int {
	return p.Replay + p.Capacity
}
