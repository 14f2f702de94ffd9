package pipeline

import (
	"fmt"

	"github.com/jmylchreest/leadhunter/pkg/lead"
)

// Summary counts leads per contact outcome.
type Summary struct {
	Total       int `json:"total" yaml:"total"`
	Found       int `json:"found" yaml:"found"`
	NotFound    int `json:"not_found" yaml:"not_found"`
	NoWebsite   int `json:"no_website" yaml:"no_website"`
	Unreachable int `json:"unreachable" yaml:"unreachable"`
}

// Summarize tallies leads.
func Summarize(leads []lead.Lead) Summary {
	s := Summary{Total: len(leads)}
	for _, l := range leads {
		switch l.Contact.Outcome {
		case lead.ContactFound:
			s.Found++
		case lead.ContactNotFound:
			s.NotFound++
		case lead.ContactNoWebsite:
			s.NoWebsite++
		case lead.ContactUnreachable:
			s.Unreachable++
		}
	}
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("%d leads: %d found, %d no email found, %d no website, %d unreachable",
		s.Total, s.Found, s.NotFound, s.NoWebsite, s.Unreachable)
}
