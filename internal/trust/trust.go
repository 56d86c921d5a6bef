// Package trust decodes TRUST train-movement messages and derives the
// values the running-train engine needs: a flattened Update, and the
// day-offset inference drawn from the train_id's origin day-of-month,
// which is TRUST's own (and different from Darwin's) midnight rule.
package trust

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/pingcap/errors"

	"github.com/trainsplorer/railcore/internal/model"
)

// MsgType enumerates the TRUST message header's msg_type field. Only
// Movement carries a body the engine acts on directly; the others are
// handled by the engine's Activate/Terminate/Cancel/AttachTrustId
// operations from their own headers, not from a decoded TRUST body.
type MsgType string

const (
	MsgActivation       MsgType = "activation"
	MsgCancellation     MsgType = "cancellation"
	MsgMovement         MsgType = "movement"
	MsgReinstatement    MsgType = "reinstatement"
	MsgChangeOfOrigin   MsgType = "change_of_origin"
	MsgChangeOfIdentity MsgType = "change_of_identity"
)

// Header is the envelope common to every TRUST message.
type Header struct {
	MsgType        MsgType `json:"msg_type"`
	SourceSystemID string  `json:"source_system_id"`
}

// Message is a TRUST message with an undecoded body, since the body's
// shape depends on Header.MsgType.
type Message struct {
	Header Header          `json:"header"`
	Body   json.RawMessage `json:"body"`
}

// DecodeMessage decodes one TRUST frame, leaving the body raw for the
// per-MsgType decoders below.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, errors.Annotate(err, "decode TRUST message")
	}
	if m.Header.MsgType == "" {
		return Message{}, errors.New("TRUST message has no msg_type")
	}
	return m, nil
}

// DecodeMovement decodes the body of a Movement message.
func (m Message) DecodeMovement() (MovementBody, error) {
	if m.Header.MsgType != MsgMovement {
		return MovementBody{}, errors.Errorf("TRUST message is %q, not a movement", m.Header.MsgType)
	}
	var body MovementBody
	if err := json.Unmarshal(m.Body, &body); err != nil {
		return MovementBody{}, errors.Annotate(err, "decode TRUST movement body")
	}
	return body, nil
}

// UnixMillis is a UNIX-milliseconds timestamp carried over the wire as a
// JSON string, per TRUST's convention.
type UnixMillis int64

func (u UnixMillis) Time() time.Time { return time.UnixMilli(int64(u)).UTC() }

func (u UnixMillis) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatInt(int64(u), 10))
}

func (u *UnixMillis) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Trace(err)
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return errors.Annotatef(err, "parse unix millis %q", s)
	}
	*u = UnixMillis(v)
	return nil
}

// MovementBody is the Movement message variant: one train passing,
// arriving at, or departing a berth.
type MovementBody struct {
	TrainID          string      `json:"train_id"`
	STANOX           string      `json:"stanox"`
	PlannedTimestamp UnixMillis  `json:"planned_timestamp"`
	ActualTimestamp  UnixMillis  `json:"actual_timestamp"`
	PublicTimestamp  *UnixMillis `json:"public_timestamp,omitempty"`
	PlannedEventType string      `json:"planned_event_type"`
	Platform         string      `json:"platform,omitempty"`
}

// ParseEventType maps TRUST's ARRIVAL/DEPARTURE/PASS event type to an
// Action.
func ParseEventType(s string) (model.Action, error) {
	switch strings.ToUpper(s) {
	case "ARRIVAL":
		return model.ActionArrival, nil
	case "DEPARTURE":
		return model.ActionDeparture, nil
	case "PASS":
		return model.ActionPass, nil
	default:
		return 0, errors.Errorf("unknown TRUST planned_event_type %q", s)
	}
}

// OriginDayOfMonth extracts the day-of-month of origin encoded in the
// trailing two digits of a 10-character TRUST train_id.
func OriginDayOfMonth(trainID string) (int, error) {
	if len(trainID) != 10 {
		return 0, errors.Errorf("train_id %q: expected 10 characters", trainID)
	}
	day, err := strconv.Atoi(trainID[8:10])
	if err != nil || day < 1 || day > 31 {
		return 0, errors.Errorf("train_id %q: invalid origin day-of-month", trainID)
	}
	return day, nil
}

// DayOffset implements TRUST's own day-offset rule: 0 if the movement's
// planned date-of-month equals the train_id's origin day, 1 otherwise.
// This is deliberately unrelated to Darwin's six-hour heuristic; the two
// feeds disagree on how to detect a midnight crossing and are each kept
// faithful to their own convention.
func DayOffset(trainID string, planned UnixMillis) (int, error) {
	origin, err := OriginDayOfMonth(trainID)
	if err != nil {
		return 0, err
	}
	if planned.Time().Day() == origin {
		return 0, nil
	}
	return 1, nil
}

// Update is the flattened form of a Movement message the engine's
// ApplyTrustMovement consumes.
type Update struct {
	STANOX           string       `json:"stanox"`
	PlannedTime      model.Time   `json:"planned_time"`
	PlannedDayOffset int          `json:"planned_day_offset"`
	PlannedAction    model.Action `json:"planned_action"`
	ActualTime       model.Time   `json:"actual_time"`
	PublicTime       *model.Time  `json:"public_time,omitempty"`
	Platform         string       `json:"platform,omitempty"`
}

// ToUpdate flattens a MovementBody into an Update.
func (b MovementBody) ToUpdate() (Update, error) {
	action, err := ParseEventType(b.PlannedEventType)
	if err != nil {
		return Update{}, err
	}
	dayOffset, err := DayOffset(b.TrainID, b.PlannedTimestamp)
	if err != nil {
		return Update{}, err
	}
	var public *model.Time
	if b.PublicTimestamp != nil {
		t := timeOfDay(*b.PublicTimestamp)
		public = &t
	}
	return Update{
		STANOX:           b.STANOX,
		PlannedTime:      timeOfDay(b.PlannedTimestamp),
		PlannedDayOffset: dayOffset,
		PlannedAction:    action,
		ActualTime:       timeOfDay(b.ActualTimestamp),
		PublicTime:       public,
		Platform:         b.Platform,
	}, nil
}

func timeOfDay(u UnixMillis) model.Time {
	t := u.Time()
	return model.NewTime(t.Hour(), t.Minute(), t.Second())
}
