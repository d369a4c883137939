package enums

import "fmt"

// VerificationSource records what evidence backed a completed payment leg.
// Gateway confirmations are proof; peer attestations are evidence only.
type VerificationSource string

const (
	VerificationSourceGatewayConfirmed VerificationSource = "gateway_confirmed"
	VerificationSourcePeerAttested     VerificationSource = "peer_attested"
)

var validVerificationSources = []VerificationSource{
	VerificationSourceGatewayConfirmed,
	VerificationSourcePeerAttested,
}

// String implements fmt.Stringer.
func (v VerificationSource) String() string {
	return string(v)
}

// IsValid reports whether the value is a known VerificationSource.
func (v VerificationSource) IsValid() bool {
	for _, candidate := range validVerificationSources {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseVerificationSource converts raw input into a VerificationSource.
func ParseVerificationSource(value string) (VerificationSource, error) {
	for _, candidate := range validVerificationSources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid verification source %q", value)
}
