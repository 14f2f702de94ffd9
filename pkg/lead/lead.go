// Package lead defines the records produced by a lead-extraction run.
package lead

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxLimit is the largest number of leads a single run may request.
const MaxLimit = 50

// ContactOutcome classifies the result of contact discovery for one lead.
// The four outcomes are mutually exclusive.
type ContactOutcome int

const (
	// ContactNoWebsite means the listing had no outbound website.
	ContactNoWebsite ContactOutcome = iota
	// ContactFound means an address was matched on the website.
	ContactFound
	// ContactNotFound means the website was fetched but contained no address.
	ContactNotFound
	// ContactUnreachable means the website could not be fetched.
	ContactUnreachable
)

var outcomeNames = map[ContactOutcome]string{
	ContactNoWebsite:   "no website",
	ContactFound:       "found",
	ContactNotFound:    "no email found",
	ContactUnreachable: "unreachable",
}

// String returns the display label of the outcome.
func (o ContactOutcome) String() string {
	if s, ok := outcomeNames[o]; ok {
		return s
	}
	return fmt.Sprintf("ContactOutcome(%d)", int(o))
}

// MarshalText implements encoding.TextMarshaler.
func (o ContactOutcome) MarshalText() ([]byte, error) {
	if _, ok := outcomeNames[o]; !ok {
		return nil, fmt.Errorf("unknown contact outcome %d", int(o))
	}
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *ContactOutcome) UnmarshalText(text []byte) error {
	for k, v := range outcomeNames {
		if v == string(text) {
			*o = k
			return nil
		}
	}
	return fmt.Errorf("unknown contact outcome %q", text)
}

// ContactResult is the value returned by contact discovery. Address is set
// only when Outcome is ContactFound; Err carries the fetch failure behind
// ContactUnreachable for diagnostics.
type ContactResult struct {
	Outcome ContactOutcome
	Address string
	Err     error
}

// Found returns a result holding addr.
func Found(addr string) ContactResult {
	return ContactResult{Outcome: ContactFound, Address: addr}
}

// NoWebsite returns the result for a lead without a website.
func NoWebsite() ContactResult {
	return ContactResult{Outcome: ContactNoWebsite}
}

// NotFound returns the result for a fetched page with no address on it.
func NotFound() ContactResult {
	return ContactResult{Outcome: ContactNotFound}
}

// Unreachable returns the result for a website that could not be fetched.
func Unreachable(err error) ContactResult {
	return ContactResult{Outcome: ContactUnreachable, Err: err}
}

// Display returns the address when one was found, otherwise the outcome label.
func (r ContactResult) Display() string {
	if r.Outcome == ContactFound {
		return r.Address
	}
	return r.Outcome.String()
}

// PartialLead is a listing entry as read from the results feed, before
// contact discovery.
type PartialLead struct {
	Name    string
	Website string
	Rating  string

	// Degraded is set when the entry's detail view could not be read.
	// Website is empty in that case.
	Degraded      bool
	DegradeReason string
}

// Lead is one finalized business candidate.
type Lead struct {
	Name     string
	Location string
	Website  string
	Rating   string
	Contact  ContactResult
}

// HasWebsite reports whether the listing linked a website.
func (l Lead) HasWebsite() bool {
	return l.Website != ""
}

// Email returns the discovered address, or "" when none was found.
func (l Lead) Email() string {
	if l.Contact.Outcome == ContactFound {
		return l.Contact.Address
	}
	return ""
}

// RatingValue parses the rating as a number. Feeds render ratings in
// locale-specific forms ("4,5", "4.5 stars"), so only the leading numeric
// token is considered.
func (l Lead) RatingValue() (float64, bool) {
	s := strings.TrimSpace(l.Rating)
	if s == "" {
		return 0, false
	}
	if fields := strings.Fields(s); len(fields) > 0 {
		s = fields[0]
	}
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
