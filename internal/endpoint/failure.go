package endpoint

import (
	"errors"
	"fmt"
)

// Kind classifies why a source did not produce a usable answer.
type Kind int

const (
	KindUnknown Kind = iota
	EndpointUnreachable
	HTTPError
	MalformedResponse
	ParseAmbiguous
	AllSourcesExhausted
)

func (k Kind) String() string {
	switch k {
	case EndpointUnreachable:
		return "endpoint_unreachable"
	case HTTPError:
		return "http_error"
	case MalformedResponse:
		return "malformed_response"
	case ParseAmbiguous:
		return "parse_ambiguous"
	case AllSourcesExhausted:
		return "all_sources_exhausted"
	default:
		return "unknown"
	}
}

// Failure is the error type returned by Client and FirstConclusive.
type Failure struct {
	Kind   Kind
	URL    string
	Status int
	// Body is the decoded JSON body of an HTTPError response, nil when the body was not JSON.
	Body  any
	Cause error
}

func (f *Failure) Error() string {
	msg := f.Kind.String()
	if f.URL != "" {
		msg += " " + f.URL
	}
	if f.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", f.Status)
	}
	if f.Cause != nil {
		msg += ": " + f.Cause.Error()
	}
	return msg
}

func (f *Failure) Unwrap() error { return f.Cause }

// KindOf returns the Kind of the outermost Failure in err's chain.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindUnknown
}

// ErrEmptyResult marks a well-formed response that carried nothing usable.
var ErrEmptyResult = errors.New("empty result")
