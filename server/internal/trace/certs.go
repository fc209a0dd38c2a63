package trace

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"math"
	"net"
	"net/url"
	"time"

	"github.com/phistack/phistack/server/internal/config"
)

// Certificate states reported in CertStatus.Status.
const (
	CertValid       = "valid"
	CertExpiring    = "expiring"
	CertExpired     = "expired"
	CertUntrusted   = "untrusted"
	CertUnreachable = "unreachable"
)

// expiringWithin is the window in which a certificate counts as expiring.
const expiringWithin = 30 * 24 * time.Hour

// CertStatus describes the leaf certificate served by an HTTPS trace source.
type CertStatus struct {
	SourceID string `json:"source_id"`
	Endpoint string `json:"endpoint"`
	AuthMode string `json:"auth_mode"`
	Status   string `json:"status"`
	Issuer   string `json:"issuer,omitempty"`
	NotAfter string `json:"not_after,omitempty"` // RFC3339
	DaysLeft int    `json:"days_left"`
}

// CheckCert dials the source's endpoint and inspects the leaf certificate.
// It returns nil for file sources and plain-HTTP endpoints.
func CheckCert(ctx context.Context, src config.TraceSource, now time.Time) *CertStatus {
	if src.Type != "prometheus" {
		return nil
	}
	u, err := url.Parse(src.Endpoint)
	if err != nil || u.Scheme != "https" {
		return nil
	}

	cs := &CertStatus{SourceID: src.ID, Endpoint: src.Endpoint, AuthMode: src.Auth.Mode}
	if cs.AuthMode == "" {
		cs.AuthMode = "none"
	}

	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), "443")
	}

	leaf, err := peerLeaf(ctx, host, src.TLS.InsecureSkipVerify)
	rejected := false
	if err != nil && !src.TLS.InsecureSkipVerify {
		// Verification failed; read the leaf unverified to say why.
		leaf, err = peerLeaf(ctx, host, true)
		rejected = true
	}
	if err != nil {
		cs.Status = CertUnreachable
		return cs
	}
	left := leaf.NotAfter.Sub(now)

	cs.Issuer = leaf.Issuer.CommonName
	cs.NotAfter = leaf.NotAfter.UTC().Format(time.RFC3339)
	cs.DaysLeft = int(math.Floor(left.Hours() / 24))
	switch {
	case left <= 0:
		cs.Status = CertExpired
	case rejected:
		cs.Status = CertUntrusted
	case left <= expiringWithin:
		cs.Status = CertExpiring
	default:
		cs.Status = CertValid
	}
	return cs
}

// peerLeaf completes a TLS handshake with host and returns the leaf
// certificate.
func peerLeaf(ctx context.Context, host string, skipVerify bool) (*x509.Certificate, error) {
	dialCtx, cancel := context.WithTimeout(ctx, defaultFetchTimeout)
	defer cancel()
	dialer := &tls.Dialer{
		Config: &tls.Config{InsecureSkipVerify: skipVerify}, //nolint:gosec // user-configured or leaf inspection only
	}
	conn, err := dialer.DialContext(dialCtx, "tcp", host)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	peers := conn.(*tls.Conn).ConnectionState().PeerCertificates
	if len(peers) == 0 {
		return nil, fmt.Errorf("trace: %s presented no certificate", host)
	}
	return peers[0], nil
}

// Cert checks the certificate of the registered source id. A nil status with
// a nil error means the source has no TLS endpoint.
func (r *Registry) Cert(ctx context.Context, id string) (*CertStatus, error) {
	src, ok := r.sources[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, id)
	}
	return CheckCert(ctx, src, time.Now()), nil
}
