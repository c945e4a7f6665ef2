package negoex

import (
	"github.com/kardianos/negoex/negoexlog"
	"github.com/kardianos/negoex/pku2u"
)

// Config holds decoder configuration.
type Config struct {
	// Logger receives decode diagnostics. Nil disables logging.
	Logger *negoexlog.Logger

	// Resolver names object identifiers found in PKU2U identities.
	// Nil leaves names empty.
	Resolver pku2u.OIDResolver

	// Kerberos decodes the AP-REQ following a PKU2U identity.
	// Nil skips it.
	Kerberos pku2u.KerberosDecoder

	// MaxMessages bounds the messages decoded from one buffer. A stream of
	// more messages stops as Malformed. Zero means no limit.
	MaxMessages int
}

// DefaultConfig returns a configuration that names well known OIDs and
// decodes AP-REQs with gokrb5, without logging.
func DefaultConfig() Config {
	return Config{
		Resolver: pku2u.DefaultOIDs(),
		Kerberos: pku2u.GokrbDecoder{},
	}
}
