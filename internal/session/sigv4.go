package session

import (
	"strings"

	"github.com/brendan.keane/sqlhttp/internal/errors"
)

// SigV4Params is a parsed CURLOPT_AWS_SIGV4 value of the form
// provider1[:provider2[:region[:service]]].
type SigV4Params struct {
	Provider1 string
	Provider2 string
	Region    string
	Service   string
}

// ParseSigV4 parses a CURLOPT_AWS_SIGV4 value.
func ParseSigV4(v string) (SigV4Params, error) {
	parts := strings.Split(v, ":")
	if len(parts) > 4 || parts[0] == "" {
		return SigV4Params{}, errors.New(errors.ErrorTypeInvalidInput,
			"value must look like provider1[:provider2[:region[:service]]]")
	}
	p := SigV4Params{Provider1: parts[0]}
	if len(parts) > 1 {
		p.Provider2 = parts[1]
	}
	if len(parts) > 2 {
		p.Region = parts[2]
	}
	if len(parts) > 3 {
		p.Service = parts[3]
	}
	return p, nil
}
