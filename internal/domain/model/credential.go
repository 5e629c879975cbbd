package model

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// UndoWindow is how long a pre-mutation snapshot stays restorable.
const UndoWindow = 5 * time.Minute

// suffixPattern matches a trailing disambiguation suffix such as " (2)".
var suffixPattern = regexp.MustCompile(`\s*\(\d+\)$`)

// Credentials maps a provider label (for example "OPENAI_API_KEY" or
// "OPENAI_API_KEY (2)") to the secret stored under it. Labels are unique by
// construction since they are map keys.
type Credentials map[string]string

// BaseLabel strips any trailing " (N)" suffix from label.
func BaseLabel(label string) string {
	return suffixPattern.ReplaceAllString(label, "")
}

// UniqueLabel returns base when it is unused, otherwise "base (N)" with the
// lowest N >= 2 that is not yet a key.
func (c Credentials) UniqueLabel(base string) string {
	if _, taken := c[base]; !taken {
		return base
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s (%d)", base, n)
		if _, taken := c[candidate]; !taken {
			return candidate
		}
	}
}

// Labels returns the stored labels in sorted order.
func (c Credentials) Labels() []string {
	labels := make([]string, 0, len(c))
	for label := range c {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Clone returns an independent copy of c.
func (c Credentials) Clone() Credentials {
	out := make(Credentials, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// UndoSnapshot is the single-slot record captured before a destructive vault
// mutation. Mapping is the JSON form of the prior credentials and View its
// YAML rendering.
type UndoSnapshot struct {
	Mapping   string    `json:"mapping"`
	View      string    `json:"yaml"`
	Timestamp time.Time `json:"timestamp"`
}

// Expired reports whether the snapshot is older than UndoWindow at now.
func (s UndoSnapshot) Expired(now time.Time) bool {
	return now.Sub(s.Timestamp) > UndoWindow
}

// MaskSecret hides all but the last four characters of a secret.
func MaskSecret(secret string) string {
	if len(secret) <= 4 {
		return strings.Repeat("•", len(secret))
	}
	return strings.Repeat("•", 8) + secret[len(secret)-4:]
}
