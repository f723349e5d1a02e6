package models

import (
	"fmt"
	"strconv"
	"strings"
)

// StatusKind enumerates the possible outcomes of a website liveness check
type StatusKind int

const (
	StatusUnknown StatusKind = iota
	StatusActive
	StatusInactiveHTTP
	StatusInactiveTransport
	StatusInactiveTLS
	StatusInactiveOther
	StatusNoURL
)

// LivenessStatus is the outcome of a single liveness check.
// Code is set only for StatusInactiveHTTP, Detail only for StatusInactiveOther.
type LivenessStatus struct {
	Kind   StatusKind
	Code   int
	Detail string
}

func Active() LivenessStatus { return LivenessStatus{Kind: StatusActive} }

func InactiveHTTP(code int) LivenessStatus {
	return LivenessStatus{Kind: StatusInactiveHTTP, Code: code}
}

func InactiveTransport() LivenessStatus { return LivenessStatus{Kind: StatusInactiveTransport} }

func InactiveTLS() LivenessStatus { return LivenessStatus{Kind: StatusInactiveTLS} }

func InactiveOther(detail string) LivenessStatus {
	return LivenessStatus{Kind: StatusInactiveOther, Detail: detail}
}

func NoURLProvided() LivenessStatus { return LivenessStatus{Kind: StatusNoURL} }

const (
	textActive    = "Active"
	textNoURL     = "No URL Provided"
	textTransport = "Inactive (Connection Error or Timeout)"
	textTLS       = "Inactive (SSL Error)"
	prefixHTTP    = "Inactive (Status Code: "
	prefixOther   = "Inactive (Error: "
)

// String renders the status the way it appears in the output table
func (s LivenessStatus) String() string {
	switch s.Kind {
	case StatusActive:
		return textActive
	case StatusInactiveHTTP:
		return fmt.Sprintf("%s%d)", prefixHTTP, s.Code)
	case StatusInactiveTransport:
		return textTransport
	case StatusInactiveTLS:
		return textTLS
	case StatusInactiveOther:
		return prefixOther + s.Detail + ")"
	case StatusNoURL:
		return textNoURL
	default:
		return ""
	}
}

// IsActive reports whether the site answered 200
func (s LivenessStatus) IsActive() bool {
	return s.Kind == StatusActive
}

func (s LivenessStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *LivenessStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseLivenessStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseLivenessStatus is the inverse of String. An empty string yields the zero status.
func ParseLivenessStatus(text string) (LivenessStatus, error) {
	text = strings.TrimSpace(text)
	switch {
	case text == "":
		return LivenessStatus{}, nil
	case text == textActive:
		return Active(), nil
	case text == textNoURL:
		return NoURLProvided(), nil
	case text == textTransport:
		return InactiveTransport(), nil
	case text == textTLS:
		return InactiveTLS(), nil
	case strings.HasPrefix(text, prefixHTTP) && strings.HasSuffix(text, ")"):
		code, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(text, prefixHTTP), ")"))
		if err != nil {
			return LivenessStatus{}, fmt.Errorf("invalid status code in %q: %w", text, err)
		}
		return InactiveHTTP(code), nil
	case strings.HasPrefix(text, prefixOther) && strings.HasSuffix(text, ")"):
		return InactiveOther(strings.TrimSuffix(strings.TrimPrefix(text, prefixOther), ")")), nil
	default:
		return LivenessStatus{}, fmt.Errorf("unrecognised website status %q", text)
	}
}
