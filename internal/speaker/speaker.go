// Package speaker names the two interview roles that can hold the microphone.
package speaker

import (
	"fmt"
	"strings"
)

// Speaker is one of the two fixed interview roles
type Speaker string

const (
	Primary   Speaker = "primary"   // the interviewer
	Secondary Speaker = "secondary" // the candidate
)

// All returns both speakers in display order
func All() []Speaker {
	return []Speaker{Primary, Secondary}
}

// Parse accepts the canonical names and the role aliases used by the browser client
func Parse(s string) (Speaker, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "primary", "interviewer":
		return Primary, nil
	case "secondary", "candidate":
		return Secondary, nil
	}
	return "", fmt.Errorf("unknown speaker %q", s)
}

// Valid reports whether s is one of the two speakers
func (s Speaker) Valid() bool {
	return s == Primary || s == Secondary
}

// Role returns the interview role the speaker represents
func (s Speaker) Role() string {
	switch s {
	case Primary:
		return "interviewer"
	case Secondary:
		return "candidate"
	}
	return "unknown"
}

func (s Speaker) String() string {
	return string(s)
}
