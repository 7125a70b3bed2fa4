package transport_test

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/authguard/internal/transport"
)

var _ = Describe("EndpointURL", func() {
	It("should build the role alias credentials URL", func() {
		Expect(transport.EndpointURL("abc.credentials.iot.eu-west-1.amazonaws.com", "edge-role")).
			To(Equal("https://abc.credentials.iot.eu-west-1.amazonaws.com/role-aliases/edge-role/credentials"))
	})

	It("should keep an explicit scheme", func() {
		Expect(transport.EndpointURL("https://127.0.0.1:8443/", "r")).
			To(Equal("https://127.0.0.1:8443/role-aliases/r/credentials"))
	})

	It("should escape the role alias", func() {
		Expect(transport.EndpointURL("host", "a/b")).To(Equal("https://host/role-aliases/a%2Fb/credentials"))
	})
})

var _ = Describe("HTTPClient", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("should return the status and body without interpreting them", func() {
		var accept string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accept = r.Header.Get("Accept")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"message":"denied"}`))
		}))
		defer server.Close()

		resp, err := transport.New(server.Client()).Get(ctx, server.URL)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
		Expect(resp.OK()).To(BeFalse())
		Expect(string(resp.Body)).To(Equal(`{"message":"denied"}`))
		Expect(accept).To(Equal("application/json"))
	})

	It("should fail when the server is unreachable", func() {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		_, err := transport.New(server.Client()).Get(ctx, url)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("NewMTLS", func() {
	var (
		dir string
		pki testPKI
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		pki = newTestPKI(dir)
	})

	It("should present the client certificate to the server", func() {
		pool := x509.NewCertPool()
		Expect(pool.AppendCertsFromPEM(pki.CertPEM)).To(BeTrue())
		serverCert, err := tls.X509KeyPair(pki.CertPEM, pki.KeyPEM)
		Expect(err).NotTo(HaveOccurred())

		server := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(r.TLS.PeerCertificates) == 0 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(r.TLS.PeerCertificates[0].Subject.CommonName))
		}))
		server.TLS = &tls.Config{
			Certificates: []tls.Certificate{serverCert},
			ClientAuth:   tls.RequireAndVerifyClientCert,
			ClientCAs:    pool,
		}
		server.StartTLS()
		defer server.Close()

		client, err := transport.NewMTLS(transport.Options{
			CertPath: pki.CertPath,
			KeyPath:  pki.KeyPath,
			CAPath:   pki.CAPath,
		})
		Expect(err).NotTo(HaveOccurred())

		resp, err := client.Get(context.Background(), server.URL)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.OK()).To(BeTrue())
		Expect(string(resp.Body)).To(Equal("authguard-test"))
	})

	It("should not trust servers outside the configured CA", func() {
		server := httptest.NewTLSServer(http.NotFoundHandler())
		defer server.Close()

		client, err := transport.NewMTLS(transport.Options{
			CertPath: pki.CertPath,
			KeyPath:  pki.KeyPath,
			CAPath:   pki.CAPath,
		})
		Expect(err).NotTo(HaveOccurred())

		_, err = client.Get(context.Background(), server.URL)
		Expect(err).To(HaveOccurred())
	})

	It("should warn about a key readable by others", func() {
		Expect(os.Chmod(pki.KeyPath, 0o644)).To(Succeed())
		var logs bytes.Buffer

		_, err := transport.NewMTLS(transport.Options{
			CertPath: pki.CertPath,
			KeyPath:  pki.KeyPath,
			CAPath:   pki.CAPath,
			Logger:   slog.New(slog.NewTextHandler(&logs, nil)),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(logs.String()).To(ContainSubstring("private key is accessible by other users"))
	})

	It("should fail for a missing key", func() {
		_, err := transport.NewMTLS(transport.Options{
			CertPath: pki.CertPath,
			KeyPath:  filepath.Join(dir, "missing.key"),
			CAPath:   pki.CAPath,
		})
		Expect(err).To(HaveOccurred())
	})

	It("should fail for a CA bundle without certificates", func() {
		empty := filepath.Join(dir, "empty.pem")
		Expect(os.WriteFile(empty, []byte("nothing here"), 0o644)).To(Succeed())

		_, err := transport.NewMTLS(transport.Options{
			CertPath: pki.CertPath,
			KeyPath:  pki.KeyPath,
			CAPath:   empty,
		})
		Expect(err).To(MatchError(ContainSubstring("no certificates found")))
	})
})
