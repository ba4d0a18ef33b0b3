package schedule

import (
	"fmt"
	"sort"
	"time"
)

// Provider is a clinician reservations are assigned to. Immutable once
// created; reservations reference providers by ID.
type Provider struct {
	ID       string
	Name     string
	Color    string
	Template Template
}

// Catalog holds every provider's weekly template. Provider iteration
// order is canonical (sorted by ID) so batch passes that walk providers
// are deterministic.
type Catalog struct {
	byID  map[string]Provider
	order []string
}

func NewCatalog(providers []Provider) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		if p.ID == "" {
			return nil, fmt.Errorf("catalog: provider with empty id")
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate provider %q", p.ID)
		}
		if err := p.Template.Validate(); err != nil {
			return nil, fmt.Errorf("catalog: provider %q: %w", p.ID, err)
		}
		c.byID[p.ID] = p
		c.order = append(c.order, p.ID)
	}
	sort.Strings(c.order)
	return c, nil
}

func (c *Catalog) Provider(id string) (Provider, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// IDs returns provider IDs in canonical order. The returned slice is
// shared; callers must not mutate it.
func (c *Catalog) IDs() []string {
	return c.order
}

func (c *Catalog) Providers() []Provider {
	out := make([]Provider, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

func slotRange(from, to string) []Slot {
	start, _ := ParseSlot(from)
	end, _ := ParseSlot(to)
	var out []Slot
	for m := start.Minutes(); m <= end.Minutes(); m += SlotWidthMinutes {
		out = append(out, Slot(fmt.Sprintf("%02d:%02d", m/60, m%60)))
	}
	return out
}

// DefaultProviders is the clinic's stock roster, used by the seed tool
// and as a fallback when the providers table is empty.
func DefaultProviders() []Provider {
	fullMorning := slotRange("09:00", "12:40")
	fullAfternoon := slotRange("16:00", "19:40")

	return []Provider{
		{
			ID:    "tanaka",
			Name:  "Dr. Tanaka",
			Color: "#2f80ed",
			Template: Template{
				Morning:   fullMorning,
				Afternoon: fullAfternoon,
				Days: map[time.Weekday]DayRule{
					time.Monday:    {Kind: FullDay},
					time.Tuesday:   {Kind: FullDay},
					time.Wednesday: {Kind: FullDay},
					time.Thursday:  {Kind: FullDay},
					time.Friday:    {Kind: FullDay},
					time.Saturday:  {Kind: MorningOnly},
				},
			},
		},
		{
			ID:    "suzuki",
			Name:  "Dr. Suzuki",
			Color: "#27ae60",
			Template: Template{
				Morning:   fullMorning,
				Afternoon: fullAfternoon,
				Days: map[time.Weekday]DayRule{
					time.Monday:    {Kind: FullDay},
					time.Tuesday:   {Kind: MorningOnly},
					time.Wednesday: {Kind: FullDay},
					time.Thursday:  {Kind: MorningOnly},
					time.Friday:    {Kind: FullDay},
				},
			},
		},
		{
			ID:    "sato",
			Name:  "Dr. Sato",
			Color: "#eb5757",
			Template: Template{
				Morning:   slotRange("10:40", "11:40"),
				Afternoon: slotRange("16:00", "17:40"),
				Days: map[time.Weekday]DayRule{
					time.Monday:    {Kind: FullDay},
					time.Tuesday:   {Kind: FullDay},
					time.Wednesday: {Kind: FullDay},
					time.Thursday:  {Kind: FullDay},
					time.Friday:    {Kind: FullDay},
					time.Saturday:  {Kind: MorningOnly, MorningOverride: fullMorning},
				},
			},
		},
	}
}
