package output

import "github.com/jmylchreest/leadhunter/pkg/lead"

// Record is the exported shape of a lead.
type Record struct {
	Name          string `json:"name" yaml:"name"`
	Location      string `json:"location" yaml:"location"`
	Website       string `json:"website,omitempty" yaml:"website,omitempty"`
	ContactEmail  string `json:"contact_email" yaml:"contact_email"` // Address, or why there is none
	ContactStatus string `json:"contact_status" yaml:"contact_status"`
	Rating        string `json:"rating,omitempty" yaml:"rating,omitempty"`
}

// Columns are the tabular headers, in Row order.
var Columns = []string{"name", "location", "website", "contact_email", "contact_status", "rating"}

// FromLead converts a lead.
func FromLead(l lead.Lead) Record {
	return Record{
		Name:          l.Name,
		Location:      l.Location,
		Website:       l.Website,
		ContactEmail:  l.Contact.Display(),
		ContactStatus: l.Contact.Outcome.String(),
		Rating:        l.Rating,
	}
}

// FromLeads converts leads in order.
func FromLeads(leads []lead.Lead) []Record {
	out := make([]Record, len(leads))
	for i, l := range leads {
		out[i] = FromLead(l)
	}
	return out
}

// Row returns the record's cells in Columns order.
func (r Record) Row() []string {
	return []string{r.Name, r.Location, r.Website, r.ContactEmail, r.ContactStatus, r.Rating}
}
