package transport_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/gomega"
)

type testPKI struct {
	CertPath string
	KeyPath  string
	CAPath   string
	CertPEM  []byte
	KeyPEM   []byte
}

// newTestPKI writes a self-signed certificate usable as CA, server and
// client identity for 127.0.0.1.
func newTestPKI(dir string) testPKI {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	Expect(err).NotTo(HaveOccurred())

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "authguard-test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	Expect(err).NotTo(HaveOccurred())
	keyDER, err := x509.MarshalECPrivateKey(key)
	Expect(err).NotTo(HaveOccurred())

	pki := testPKI{
		CertPath: filepath.Join(dir, "device.pem.crt"),
		KeyPath:  filepath.Join(dir, "private.pem.key"),
		CAPath:   filepath.Join(dir, "ca.pem"),
		CertPEM:  pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		KeyPEM:   pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}),
	}
	Expect(os.WriteFile(pki.CertPath, pki.CertPEM, 0o644)).To(Succeed())
	Expect(os.WriteFile(pki.KeyPath, pki.KeyPEM, 0o600)).To(Succeed())
	Expect(os.WriteFile(pki.CAPath, pki.CertPEM, 0o644)).To(Succeed())
	return pki
}
