package auth

import "pasar/internal/apperrors"

// ClientType identifies the channel a credential is scoped to. Tokens minted
// for one channel never verify against the other channel's secret.
type ClientType string

const (
	ClientWeb    ClientType = "web"
	ClientMobile ClientType = "mobile"
)

// ParseClientType interprets the client-type hint sent by the caller. An empty
// hint means web; anything other than the two known channels is rejected.
func ParseClientType(s string) (ClientType, error) {
	switch ClientType(s) {
	case "":
		return ClientWeb, nil
	case ClientWeb:
		return ClientWeb, nil
	case ClientMobile:
		return ClientMobile, nil
	default:
		return "", apperrors.Validation("unknown client type %q", s)
	}
}
