package adminauth

import (
	"slices"
	"strings"
)

// AllowList is the immutable set of emails eligible to hold an AdminProfile.
// Emails are compared case-insensitively after trimming whitespace.
type AllowList struct {
	emails map[string]struct{}
}

// NewAllowList builds an AllowList. Empty entries are ignored.
func NewAllowList(emails ...string) AllowList {
	set := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		if n := normalizeEmail(e); n != "" {
			set[n] = struct{}{}
		}
	}
	return AllowList{emails: set}
}

// Contains reports whether email is allow-listed.
func (a AllowList) Contains(email string) bool {
	n := normalizeEmail(email)
	if n == "" {
		return false
	}
	_, ok := a.emails[n]
	return ok
}

// Len returns the number of entries.
func (a AllowList) Len() int {
	return len(a.emails)
}

// Emails returns the normalized entries in sorted order.
func (a AllowList) Emails() []string {
	out := make([]string, 0, len(a.emails))
	for e := range a.emails {
		out = append(out, e)
	}
	slices.Sort(out)
	return out
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
