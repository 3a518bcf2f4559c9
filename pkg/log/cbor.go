package log

import (
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// ErrMalformedEvent is returned by DecodeEvent for an event whose payload
// does not match its category.
var ErrMalformedEvent = errors.New("malformed trace event")

// Trace files are append-only CBOR sequences. Timestamps are tagged
// RFC 3339 strings so nanoseconds survive a round trip.
var (
	traceEnc = mustEncMode(cbor.EncOptions{
		Sort:          cbor.SortCoreDeterministic,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
		TimeTag:       cbor.EncTagRequired,
	})
	traceDec = mustDecMode(cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
		UTF8:        cbor.UTF8DecodeInvalid,
	})
)

func mustEncMode(opts cbor.EncOptions) cbor.EncMode {
	em, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("trace CBOR encoder: %v", err))
	}
	return em
}

func mustDecMode(opts cbor.DecOptions) cbor.DecMode {
	dm, err := opts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("trace CBOR decoder: %v", err))
	}
	return dm
}

// EncodeEvent encodes a single event.
func EncodeEvent(event Event) ([]byte, error) {
	return traceEnc.Marshal(event)
}

// DecodeEvent decodes a single event and checks that it carries exactly the
// payload its category names.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := traceDec.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	if err := checkPayload(event); err != nil {
		return Event{}, err
	}
	return event, nil
}

func checkPayload(e Event) error {
	set := 0
	for _, present := range []bool{e.Lifecycle != nil, e.Membership != nil, e.Delivery != nil, e.Fault != nil} {
		if present {
			set++
		}
	}
	var want bool
	switch e.Category {
	case CategoryLifecycle:
		want = e.Lifecycle != nil
	case CategoryMembership:
		want = e.Membership != nil
	case CategoryDelivery:
		want = e.Delivery != nil
	case CategoryFault:
		want = e.Fault != nil
	default:
		return fmt.Errorf("%w: category %d", ErrMalformedEvent, uint8(e.Category))
	}
	if !want || set != 1 {
		return fmt.Errorf("%w: %s event with %d payloads", ErrMalformedEvent, e.Category, set)
	}
	return nil
}

// NewEncoder returns a trace stream encoder writing to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return traceEnc.NewEncoder(w)
}

// NewDecoder returns a trace stream decoder reading from r. Stream decoding
// does not check payloads; readers skip what they do not understand.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return traceDec.NewDecoder(r)
}
