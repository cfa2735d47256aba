package contact

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// fieldAliases maps each logical field to the column names accepted for it,
// in priority order. Matching is case-insensitive; the first alias present
// with a non-empty value wins.
var fieldAliases = map[string][]string{
	"email":      {"email", "e-mail"},
	"first_name": {"first_name", "first name", "firstname", "first"},
	"last_name":  {"last_name", "last name", "lastname", "last"},
	"company":    {"company", "organization"},
	"website":    {"website", "url", "domain"},
	"title":      {"title", "job_title", "position"},
}

// LoadCSV reads contacts from a CSV file. Rows missing an email or website
// are skipped; RowIndex preserves the original position so progress indexes
// stay stable across runs.
func LoadCSV(path string) ([]Contact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening contacts file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header row: %w", err)
	}

	// Resolve column positions once, up front.
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}

	lookup := func(row []string, field string) string {
		for _, alias := range fieldAliases[field] {
			i, ok := cols[alias]
			if !ok || i >= len(row) {
				continue
			}
			if v := strings.TrimSpace(row[i]); v != "" {
				return v
			}
		}
		return ""
	}

	var contacts []Contact
	for idx := 0; ; idx++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", idx, err)
		}

		c := Contact{
			Email:     lookup(row, "email"),
			FirstName: lookup(row, "first_name"),
			LastName:  lookup(row, "last_name"),
			Company:   lookup(row, "company"),
			Website:   lookup(row, "website"),
			Title:     lookup(row, "title"),
			RowIndex:  idx,
		}
		if c.Email == "" || c.Website == "" {
			continue
		}
		contacts = append(contacts, c)
	}

	return contacts, nil
}

// Fingerprint returns the hex SHA-256 of the file's contents, used to key
// resumable progress records.
func Fingerprint(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading contacts file: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
