package recommend

import (
	"context"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/conceptgraph-go/internal/concept"
)

// Event field keys stored in Item.Fields
const (
	FieldStartTime = "start_time"
	FieldEndTime   = "end_time"
	FieldLocation  = "location"
	FieldPicture   = "picture"
	FieldURL       = "url"
)

// Event holds the scheduling details of an item that happens at a time and
// place. A zero EndTime means the end is unknown.
type Event struct {
	StartTime time.Time
	EndTime   time.Time
	Location  string
	Picture   string
	URL       string
}

// NewEvent builds an item for an event and stores the event details in its
// fields.
func NewEvent(ctx context.Context, ann concept.Annotator, name, description string, ev Event, opts ...ItemOption) (*Item, error) {
	item, err := NewItem(ctx, ann, name, description, opts...)
	if err != nil {
		return nil, err
	}
	ev.Apply(item)
	return item, nil
}

// Apply writes the event details into item.Fields. Times are stored as
// RFC 3339 strings.
func (e Event) Apply(item *Item) {
	if item.Fields == nil {
		item.Fields = make(map[string]any, 5)
	}
	item.Fields[FieldStartTime] = e.StartTime.Format(time.RFC3339)
	if !e.EndTime.IsZero() {
		item.Fields[FieldEndTime] = e.EndTime.Format(time.RFC3339)
	} else {
		delete(item.Fields, FieldEndTime)
	}
	item.Fields[FieldLocation] = e.Location
	item.Fields[FieldPicture] = e.Picture
	item.Fields[FieldURL] = e.URL
}

// EventOf reads event details back out of item.Fields. ok is false when the
// item carries no start time.
func EventOf(item *Item) (ev Event, ok bool, err error) {
	start, present := item.Fields[FieldStartTime]
	if !present {
		return Event{}, false, nil
	}
	if ev.StartTime, err = parseTimeField(item.Name, FieldStartTime, start); err != nil {
		return Event{}, false, err
	}
	if end, present := item.Fields[FieldEndTime]; present {
		if ev.EndTime, err = parseTimeField(item.Name, FieldEndTime, end); err != nil {
			return Event{}, false, err
		}
	}
	ev.Location, _ = item.Fields[FieldLocation].(string)
	ev.Picture, _ = item.Fields[FieldPicture].(string)
	ev.URL, _ = item.Fields[FieldURL].(string)
	return ev, true, nil
}

func parseTimeField(name, key string, v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: item %q field %q is not a string", ErrMalformedRecord, name, key)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: item %q field %q: %v", ErrMalformedRecord, name, key, err)
	}
	return t, nil
}
