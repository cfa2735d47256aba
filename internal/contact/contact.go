// Package contact loads outreach targets from CSV files.
package contact

import (
	"strings"
)

// Contact is one outreach target from the input file.
type Contact struct {
	Email     string
	FirstName string
	LastName  string
	Company   string
	Website   string
	Title     string
	RowIndex  int
}

// FullName returns "First Last" with surrounding whitespace trimmed.
func (c Contact) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Domain returns the contact's website reduced to a bare lowercase domain:
// no scheme, no path, no leading www.
func (c Contact) Domain() string {
	url := strings.ToLower(strings.TrimSpace(c.Website))
	if i := strings.Index(url, "://"); i != -1 {
		url = url[i+3:]
	}
	if i := strings.IndexByte(url, '/'); i != -1 {
		url = url[:i]
	}
	return strings.TrimPrefix(url, "www.")
}
