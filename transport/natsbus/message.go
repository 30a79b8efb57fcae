package natsbus

import (
	"fmt"
	"strconv"

	"github.com/nats-io/nats.go"

	"github.com/arloliu/slotindex/types"
)

// Header names.
const (
	HeaderKind      = "Slot-Kind"
	HeaderTimeslice = "Timeslice-Id"
)

// Message kinds carried in HeaderKind.
const (
	KindData      = "data"
	KindWatermark = "watermark"
)

// PayloadVariable is the variable position an arrival's payload is stored at.
const PayloadVariable = 1

// Decoding errors. All of them wrap types.ErrMalformedMessage.
var (
	// ErrMissingTimeslice indicates a message without a Timeslice-Id header.
	ErrMissingTimeslice = fmt.Errorf("%w: missing timeslice header", types.ErrMalformedMessage)

	// ErrMalformedTimeslice indicates a Timeslice-Id header that is not a valid timeslice.
	ErrMalformedTimeslice = fmt.Errorf("%w: malformed timeslice header", types.ErrMalformedMessage)

	// ErrUnknownKind indicates a Slot-Kind header other than data or watermark.
	ErrUnknownKind = fmt.Errorf("%w: unknown message kind", types.ErrMalformedMessage)
)

func newMessage(subject, kind string, ts types.TimesliceID, payload []byte) *nats.Msg {
	msg := nats.NewMsg(subject)
	msg.Header.Set(HeaderKind, kind)
	msg.Header.Set(HeaderTimeslice, strconv.FormatUint(uint64(ts), 10))
	msg.Data = payload

	return msg
}

// decode reads kind and timeslice from a message. A missing kind means data.
func decode(msg *nats.Msg) (string, types.TimesliceID, error) {
	kind := msg.Header.Get(HeaderKind)
	switch kind {
	case "":
		kind = KindData
	case KindData, KindWatermark:
	default:
		return "", types.InvalidTimeslice, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	raw := msg.Header.Get(HeaderTimeslice)
	if raw == "" {
		return "", types.InvalidTimeslice, ErrMissingTimeslice
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return "", types.InvalidTimeslice, fmt.Errorf("%w: %w", ErrMalformedTimeslice, err)
	}
	ts := types.TimesliceID(v)
	if !ts.IsValid() {
		return "", types.InvalidTimeslice, fmt.Errorf("%w: %q is the invalid sentinel", ErrMalformedTimeslice, raw)
	}

	return kind, ts, nil
}
