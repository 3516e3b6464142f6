// Package catalog holds the static guided-date content the app ships with.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed guided_dates.json
var guidedDatesJSON []byte

// Mode is the interaction style of an activity.
type Mode string

const (
	ModeDeepDive  Mode = "DEEP_DIVE"
	ModeEnvelope  Mode = "ENVELOPE"
	ModeResonance Mode = "RESONANCE"
)

// Activity is one guided-date template.
type Activity struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Mode     Mode   `json:"mode"`
	Desc     string `json:"desc"`
	Location string `json:"location,omitempty"`
	Energy   string `json:"energy,omitempty"`
}

// Category groups activities under a shared scientific rationale.
type Category struct {
	Category        string     `json:"category"`
	ScientificBasis string     `json:"scientific_basis"`
	Activities      []Activity `json:"activities"`
}

// Catalog is the loaded guided-date content.
type Catalog struct {
	Categories []Category
	byID       map[string]*Entry
}

// Entry pairs an activity with its category context.
type Entry struct {
	Activity Activity
	Category string
	Basis    string
}

type catalogFile struct {
	GuidedDates []Category `json:"guided_dates"`
}

// Load parses the embedded catalog.
func Load() (*Catalog, error) {
	return Parse(guidedDatesJSON)
}

// Parse builds a catalog from raw JSON.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(file.GuidedDates) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}

	c := &Catalog{
		Categories: file.GuidedDates,
		byID:       make(map[string]*Entry),
	}
	for i := range c.Categories {
		cat := &c.Categories[i]
		for _, act := range cat.Activities {
			c.byID[act.ID] = &Entry{
				Activity: act,
				Category: cat.Category,
				Basis:    cat.ScientificBasis,
			}
		}
	}
	return c, nil
}

// FindActivity returns the entry for an activity id, or nil if unknown.
func (c *Catalog) FindActivity(id string) *Entry {
	return c.byID[id]
}

// Entries returns every activity with its category context, in catalog order.
func (c *Catalog) Entries() []Entry {
	var out []Entry
	for _, cat := range c.Categories {
		for _, act := range cat.Activities {
			out = append(out, Entry{Activity: act, Category: cat.Category, Basis: cat.ScientificBasis})
		}
	}
	return out
}
