package cert

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"io"
	"math/big"
	"time"
)

const (
	// Organization is the organization name carried by generated certificates.
	Organization = "Jellyfin Operator"

	// caValidity is how long the self-signed CA stays valid.
	caValidity = 10 * 365 * 24 * time.Hour

	// servingValidity is how long the serving certificate stays valid.
	servingValidity = 365 * 24 * time.Hour
)

// Artifacts holds the PEM-encoded CA and serving pair for the webhook
// server.
type Artifacts struct {
	CACertPEM      []byte
	CAKeyPEM       []byte
	ServingCertPEM []byte
	ServingKeyPEM  []byte
}

// Generate creates a fresh self-signed CA and a serving certificate for
// the given DNS names, signed by that CA. Keys are ECDSA P-256.
func Generate(rng io.Reader, commonName string, dnsNames []string) (*Artifacts, error) {
	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rng)
	if err != nil {
		return nil, fmt.Errorf("generating CA key: %w", err)
	}

	caTemplate := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			CommonName:   Organization + " CA",
			Organization: []string{Organization},
		},
		NotBefore:             time.Now().Add(-1 * time.Hour),
		NotAfter:              time.Now().Add(caValidity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	caDER, err := x509.CreateCertificate(rng, &caTemplate, &caTemplate, &caKey.PublicKey, caKey)
	if err != nil {
		return nil, fmt.Errorf("creating CA certificate: %w", err)
	}
	caCert, err := x509.ParseCertificate(caDER)
	if err != nil {
		return nil, fmt.Errorf("parsing generated CA: %w", err)
	}

	servingKey, err := ecdsa.GenerateKey(elliptic.P256(), rng)
	if err != nil {
		return nil, fmt.Errorf("generating serving key: %w", err)
	}

	// A random 128-bit serial is enough uniqueness for certs that only
	// ever live inside one cluster's Secret.
	serialLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(rng, serialLimit)
	if err != nil {
		return nil, fmt.Errorf("generating serial: %w", err)
	}

	servingTemplate := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   commonName,
			Organization: []string{Organization},
		},
		DNSNames:    dnsNames,
		NotBefore:   time.Now().Add(-1 * time.Hour),
		NotAfter:    time.Now().Add(servingValidity),
		KeyUsage:    x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	servingDER, err := x509.CreateCertificate(rng, &servingTemplate, caCert, &servingKey.PublicKey, caKey)
	if err != nil {
		return nil, fmt.Errorf("signing serving certificate: %w", err)
	}

	caKeyDER, err := x509.MarshalECPrivateKey(caKey)
	if err != nil {
		return nil, fmt.Errorf("marshaling CA key: %w", err)
	}
	servingKeyDER, err := x509.MarshalECPrivateKey(servingKey)
	if err != nil {
		return nil, fmt.Errorf("marshaling serving key: %w", err)
	}

	return &Artifacts{
		CACertPEM:      pemEncode("CERTIFICATE", caDER),
		CAKeyPEM:       pemEncode("EC PRIVATE KEY", caKeyDER),
		ServingCertPEM: pemEncode("CERTIFICATE", servingDER),
		ServingKeyPEM:  pemEncode("EC PRIVATE KEY", servingKeyDER),
	}, nil
}

func pemEncode(blockType string, der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
}
