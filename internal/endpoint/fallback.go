package endpoint

import (
	"context"
	"errors"
)

// Candidate is one source to try: a base URL, optionally paired with an API version.
type Candidate struct {
	BaseURL string
	Version string
}

func (c Candidate) String() string {
	if c.Version == "" {
		return c.BaseURL
	}
	return c.BaseURL + " [" + c.Version + "]"
}

// Expand returns candidates in endpoint-major order: every version of the first
// base URL, then every version of the second, and so on.
func Expand(bases []string, versions ...string) []Candidate {
	if len(versions) == 0 {
		versions = []string{""}
	}
	out := make([]Candidate, 0, len(bases)*len(versions))
	for _, b := range bases {
		for _, v := range versions {
			out = append(out, Candidate{BaseURL: b, Version: v})
		}
	}
	return out
}

// FirstConclusive calls attempt for each candidate in order and returns the first
// result produced with a nil error. Remaining candidates are not tried.
// Each failed attempt is passed to onFailure (may be nil). When every candidate
// fails the error is a Failure of kind AllSourcesExhausted wrapping all causes.
func FirstConclusive[T any](
	ctx context.Context,
	candidates []Candidate,
	attempt func(context.Context, Candidate) (T, error),
	onFailure func(Candidate, error),
) (T, Candidate, error) {
	var zero T
	errs := make([]error, 0, len(candidates))
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := attempt(ctx, c)
		if err == nil {
			return res, c, nil
		}
		if onFailure != nil {
			onFailure(c, err)
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		errs = append(errs, errors.New("no candidates"))
	}
	return zero, Candidate{}, &Failure{Kind: AllSourcesExhausted, Cause: errors.Join(errs...)}
}
