package schedule

import (
	"errors"
	"fmt"
	"time"
)

// DayKind describes how a provider works a given weekday.
type DayKind int

const (
	DayOff DayKind = iota
	FullDay
	MorningOnly
)

// DayRule is the per-weekday entry of a template. MorningOverride, when
// set, replaces the template's base morning list for that weekday (used
// for providers whose Saturday morning differs from weekdays).
type DayRule struct {
	Kind            DayKind `json:"kind"`
	MorningOverride []Slot  `json:"morning_override,omitempty"`
}

// Template is a provider's fixed weekly schedule: base morning and
// afternoon slot lists plus a rule per working weekday. Weekdays with
// no rule are days off. Sunday is always off regardless of rules.
type Template struct {
	Morning   []Slot                   `json:"morning"`
	Afternoon []Slot                   `json:"afternoon"`
	Days      map[time.Weekday]DayRule `json:"days"`
}

// Validate checks that every slot list is strictly increasing and
// aligned to the 20-minute grid.
func (t Template) Validate() error {
	if err := validateSlots("morning", t.Morning); err != nil {
		return err
	}
	if err := validateSlots("afternoon", t.Afternoon); err != nil {
		return err
	}
	for wd, rule := range t.Days {
		if wd == time.Sunday && rule.Kind != DayOff {
			return errors.New("template: Sunday must be a day off")
		}
		if err := validateSlots(fmt.Sprintf("override for %s", wd), rule.MorningOverride); err != nil {
			return err
		}
	}
	return nil
}

func validateSlots(name string, slots []Slot) error {
	prev := -1
	for _, s := range slots {
		parsed, err := ParseSlot(string(s))
		if err != nil {
			return fmt.Errorf("template %s: %w", name, err)
		}
		if m := parsed.Minutes(); m <= prev {
			return fmt.Errorf("template %s: slots must be strictly increasing at %s", name, s)
		} else {
			prev = m
		}
	}
	return nil
}

// SlotsOn evaluates the weekday rules and returns the ordered slot list
// for wd, or nil when the provider does not work that day.
func (t Template) SlotsOn(wd time.Weekday) []Slot {
	if wd == time.Sunday {
		return nil
	}
	rule, ok := t.Days[wd]
	if !ok || rule.Kind == DayOff {
		return nil
	}

	morning := t.Morning
	if rule.MorningOverride != nil {
		morning = rule.MorningOverride
	}

	switch rule.Kind {
	case MorningOnly:
		return append([]Slot(nil), morning...)
	case FullDay:
		out := make([]Slot, 0, len(morning)+len(t.Afternoon))
		out = append(out, morning...)
		out = append(out, t.Afternoon...)
		return out
	default:
		return nil
	}
}
