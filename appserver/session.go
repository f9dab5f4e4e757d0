package appserver

import (
	"crypto/tls"
	"net"

	"github.com/pkg/errors"
)

// TLSClientCertSessionResolver resolves a session's username from the
// client certificate's Common Name. LOGIN/SIGNUP (§6.3's out-of-scope
// external collaborators) are assumed to have already issued that
// certificate; this resolver only reads what mutual TLS already
// authenticated, rather than re-implementing a session/credential store.
type TLSClientCertSessionResolver struct{}

// ResolveSession implements SessionResolver.
func (TLSClientCertSessionResolver) ResolveSession(conn net.Conn) (string, error) {
	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return "", errors.New("appserver: session resolution requires a TLS connection")
	}
	if err := tlsConn.Handshake(); err != nil {
		return "", errors.Wrap(err, "appserver: TLS handshake")
	}
	state := tlsConn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return "", errors.New("appserver: no client certificate presented")
	}
	return state.PeerCertificates[0].Subject.CommonName, nil
}
