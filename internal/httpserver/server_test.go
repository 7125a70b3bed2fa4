package httpserver_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/authguard/internal/httpserver"
)

var _ = Describe("HTTP Server", func() {
	var log *slog.Logger

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	})

	Context("server creation", func() {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

		It("creates server with valid address", func() {
			srv, err := httpserver.New("localhost:9999", handler, log)
			Expect(err).NotTo(HaveOccurred())
			Expect(srv).NotTo(BeNil())
		})

		It("creates server with IP address", func() {
			srv, err := httpserver.New("127.0.0.1:9999", handler, log)
			Expect(err).NotTo(HaveOccurred())
			Expect(srv).NotTo(BeNil())
		})

		It("handles port-only address", func() {
			srv, err := httpserver.New(":9999", handler, log)
			Expect(err).NotTo(HaveOccurred())
			Expect(srv).NotTo(BeNil())
		})

		It("rejects invalid address", func() {
			srv, err := httpserver.New("invalid:host:port", handler, log)
			Expect(err).To(HaveOccurred())
			Expect(srv).To(BeNil())
		})
	})

	Context("server lifecycle", func() {
		It("serves requests until the context is cancelled", func() {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("test"))
			})
			srv, err := httpserver.New("127.0.0.1:0", handler, log)
			Expect(err).NotTo(HaveOccurred())

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- srv.Run(ctx) }()

			waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer waitCancel()
			addr, err := srv.Addr(waitCtx)
			Expect(err).NotTo(HaveOccurred())

			resp, err := http.Get("http://" + addr)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, _ := io.ReadAll(resp.Body)
			Expect(string(body)).To(Equal("test"))

			cancel()
			Eventually(done).Should(Receive(BeNil()))
		})

		It("fails when the address is already taken", func() {
			first, err := httpserver.New("127.0.0.1:0", http.NotFoundHandler(), log)
			Expect(err).NotTo(HaveOccurred())
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go func() { _ = first.Run(ctx) }()

			addr, err := first.Addr(ctx)
			Expect(err).NotTo(HaveOccurred())

			second, err := httpserver.New(addr, http.NotFoundHandler(), log)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Run(ctx)).To(HaveOccurred())
		})
	})
})
