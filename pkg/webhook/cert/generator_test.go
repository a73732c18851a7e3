package cert

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"
)

func TestGenerate(t *testing.T) {
	t.Parallel()

	commonName := "jellyfin-operator-webhook.media.svc"
	dnsNames := []string{
		"jellyfin-operator-webhook",
		"jellyfin-operator-webhook.media",
		commonName,
		commonName + ".cluster.local",
	}

	artifacts, err := Generate(rand.Reader, commonName, dnsNames)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	caCert := parseCert(t, artifacts.CACertPEM)
	if !caCert.IsCA {
		t.Error("CA certificate is not marked as a CA")
	}
	if got := caCert.Subject.Organization[0]; got != Organization {
		t.Errorf("CA organization = %q, want %q", got, Organization)
	}

	serving := parseCert(t, artifacts.ServingCertPEM)
	if serving.Subject.CommonName != commonName {
		t.Errorf("serving CommonName = %q, want %q", serving.Subject.CommonName, commonName)
	}
	if len(serving.DNSNames) != len(dnsNames) {
		t.Errorf("serving DNSNames = %v, want %v", serving.DNSNames, dnsNames)
	}
	if serving.IsCA {
		t.Error("serving certificate must not be a CA")
	}

	// The serving cert must chain to the generated CA.
	roots := x509.NewCertPool()
	roots.AddCert(caCert)
	if _, err := serving.Verify(x509.VerifyOptions{
		Roots:   roots,
		DNSName: commonName,
	}); err != nil {
		t.Errorf("serving cert does not verify against CA: %v", err)
	}

	// Both keys must be parseable EC keys.
	parseKey(t, artifacts.CAKeyPEM)
	parseKey(t, artifacts.ServingKeyPEM)

	// Validity should outlast the rotation threshold comfortably.
	if serving.NotAfter.Before(time.Now().Add(rotationThreshold)) {
		t.Errorf("serving cert expires %v, inside the rotation threshold", serving.NotAfter)
	}
}

func parseCert(t *testing.T, certPEM []byte) *x509.Certificate {
	t.Helper()
	block, _ := pem.Decode(certPEM)
	if block == nil {
		t.Fatal("failed to decode certificate PEM")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("parsing certificate: %v", err)
	}
	return cert
}

func parseKey(t *testing.T, keyPEM []byte) *ecdsa.PrivateKey {
	t.Helper()
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		t.Fatal("failed to decode key PEM")
	}
	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		t.Fatalf("parsing EC key: %v", err)
	}
	return key
}
