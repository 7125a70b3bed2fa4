package filelock_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/authguard/internal/filelock"
)

var _ = Describe("Locker", func() {
	var (
		dir  string
		path string
		ctx  context.Context
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		path = filepath.Join(dir, "state.json")
		ctx = context.Background()
	})

	It("should place the lock file next to the data file", func() {
		locker := filelock.New(path, time.Second)
		Expect(locker.Path()).To(Equal(path + ".lock"))
	})

	It("should create the directory for the lock file", func() {
		nested := filepath.Join(dir, "a", "b", "state.json")
		locker := filelock.New(nested, time.Second)

		err := locker.WithExclusive(ctx, func() error { return nil })
		Expect(err).NotTo(HaveOccurred())
		Expect(filepath.Join(dir, "a", "b", "state.json.lock")).To(BeAnExistingFile())
	})

	It("should return the callback error", func() {
		locker := filelock.New(path, time.Second)
		boom := errors.New("boom")

		err := locker.WithExclusive(ctx, func() error { return boom })
		Expect(err).To(MatchError(boom))
	})

	It("should release the lock when the callback fails", func() {
		locker := filelock.New(path, 200*time.Millisecond)

		_ = locker.WithExclusive(ctx, func() error { return errors.New("boom") })

		err := filelock.New(path, 200*time.Millisecond).WithExclusive(ctx, func() error { return nil })
		Expect(err).NotTo(HaveOccurred())
	})

	It("should release the lock when the callback panics", func() {
		locker := filelock.New(path, 200*time.Millisecond)

		Expect(func() {
			_ = locker.WithExclusive(ctx, func() error { panic("boom") })
		}).To(Panic())

		err := filelock.New(path, 200*time.Millisecond).WithExclusive(ctx, func() error { return nil })
		Expect(err).NotTo(HaveOccurred())
	})

	Context("when another holder has the exclusive lock", func() {
		var (
			release chan struct{}
			held    chan struct{}
			done    chan error
		)

		BeforeEach(func() {
			release = make(chan struct{})
			held = make(chan struct{})
			done = make(chan error, 1)

			go func() {
				done <- filelock.New(path, time.Second).WithExclusive(ctx, func() error {
					close(held)
					<-release
					return nil
				})
			}()
			Eventually(held).Should(BeClosed())
		})

		AfterEach(func() {
			close(release)
			Eventually(done).Should(Receive(BeNil()))
		})

		It("should time out a second exclusive holder", func() {
			err := filelock.New(path, 150*time.Millisecond).WithExclusive(ctx, func() error {
				Fail("callback must not run without the lock")
				return nil
			})
			Expect(err).To(HaveOccurred())
			Expect(filelock.IsTimeout(err)).To(BeTrue())
		})

		It("should time out a shared holder", func() {
			err := filelock.New(path, 150*time.Millisecond).WithShared(ctx, func() error { return nil })
			Expect(filelock.IsTimeout(err)).To(BeTrue())
		})

		It("should report cancellation rather than a timeout", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			err := filelock.New(path, time.Second).WithExclusive(cctx, func() error { return nil })
			Expect(err).To(HaveOccurred())
			Expect(filelock.IsTimeout(err)).To(BeFalse())
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		})
	})

	It("should let shared holders overlap", func() {
		inner := make(chan error, 1)

		err := filelock.New(path, time.Second).WithShared(ctx, func() error {
			inner <- filelock.New(path, 150*time.Millisecond).WithShared(ctx, func() error { return nil })
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(inner).To(Receive(BeNil()))
	})
})

var _ = Describe("WriteFileAtomic", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("should write the contents with the requested permissions", func() {
		path := filepath.Join(dir, "creds.json")

		Expect(filelock.WriteFileAtomic(path, []byte(`{"a":1}`), 0o600)).To(Succeed())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal(`{"a":1}`))

		info, err := os.Stat(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))
	})

	It("should replace existing contents and leave no temporary files", func() {
		path := filepath.Join(dir, "creds.json")
		Expect(os.WriteFile(path, []byte("old contents that are longer"), 0o600)).To(Succeed())

		Expect(filelock.WriteFileAtomic(path, []byte("new"), 0o600)).To(Succeed())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("new"))

		entries, err := os.ReadDir(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))
	})

	It("should create missing parent directories", func() {
		path := filepath.Join(dir, "nested", "creds.json")
		Expect(filelock.WriteFileAtomic(path, []byte("x"), 0o600)).To(Succeed())
		Expect(path).To(BeAnExistingFile())
	})
})
