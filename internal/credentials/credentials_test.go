package credentials_test

import (
	"bytes"
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/authguard/internal/credentials"
)

const responseBody = `{
  "credentials": {
    "accessKeyId": "ASIAEXAMPLE",
    "secretAccessKey": "secret",
    "sessionToken": "token",
    "expiration": "2026-10-18T12:00:00Z"
  }
}`

var _ = Describe("Credentials", func() {
	Describe("Parse", func() {
		It("should decode the endpoint envelope", func() {
			set, err := credentials.Parse([]byte(responseBody))
			Expect(err).NotTo(HaveOccurred())
			Expect(set).To(Equal(credentials.Set{
				AccessKeyID:     "ASIAEXAMPLE",
				SecretAccessKey: "secret",
				SessionToken:    "token",
				Expiration:      "2026-10-18T12:00:00Z",
			}))
		})

		It("should reject malformed JSON", func() {
			_, err := credentials.Parse([]byte(`{"credentials":`))
			Expect(err).To(HaveOccurred())
		})

		It("should reject an envelope with missing fields", func() {
			_, err := credentials.Parse([]byte(`{"credentials":{"accessKeyId":"A"}}`))
			Expect(err).To(MatchError(ContainSubstring("secretAccessKey")))
		})

		It("should reject a body without the credentials key", func() {
			_, err := credentials.Parse([]byte(`{"message":"forbidden"}`))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Marshal", func() {
		It("should produce a body Parse accepts", func() {
			set := credentials.Set{AccessKeyID: "A", SecretAccessKey: "S", SessionToken: "T", Expiration: "2026-10-18T12:00:00Z"}
			data, err := credentials.Marshal(set)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`"credentials":{"accessKeyId":"A"`))

			parsed, err := credentials.Parse(data)
			Expect(err).NotTo(HaveOccurred())
			Expect(parsed).To(Equal(set))
		})
	})

	Describe("ExpiresAt", func() {
		It("should parse RFC3339 with an offset", func() {
			set := credentials.Set{Expiration: "2026-10-18T14:00:00+02:00"}
			t, err := set.ExpiresAt()
			Expect(err).NotTo(HaveOccurred())
			Expect(t.Equal(time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC))).To(BeTrue())
		})

		It("should fail for an unparsable value", func() {
			_, err := credentials.Set{Expiration: "tomorrow"}.ExpiresAt()
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("WriteProcessOutput", func() {
		It("should write exactly one credential_process object", func() {
			set, _ := credentials.Parse([]byte(responseBody))

			var buf bytes.Buffer
			Expect(credentials.WriteProcessOutput(&buf, set)).To(Succeed())

			dec := json.NewDecoder(&buf)
			var out map[string]any
			Expect(dec.Decode(&out)).To(Succeed())
			Expect(out).To(Equal(map[string]any{
				"Version":         float64(1),
				"AccessKeyId":     "ASIAEXAMPLE",
				"SecretAccessKey": "secret",
				"SessionToken":    "token",
				"Expiration":      "2026-10-18T12:00:00Z",
			}))
			Expect(dec.More()).To(BeFalse())
		})
	})

	Describe("AWS", func() {
		It("should carry the expiration and source", func() {
			set, _ := credentials.Parse([]byte(responseBody))
			creds := set.AWS("authguard")
			Expect(creds.AccessKeyID).To(Equal("ASIAEXAMPLE"))
			Expect(creds.Source).To(Equal("authguard"))
			Expect(creds.CanExpire).To(BeTrue())
			Expect(creds.Expires.Equal(time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC))).To(BeTrue())
		})

		It("should leave the expiry zero for an unparsable timestamp", func() {
			creds := credentials.Set{AccessKeyID: "A", Expiration: "bad"}.AWS("authguard")
			Expect(creds.Expires.IsZero()).To(BeTrue())
			Expect(creds.Expired()).To(BeTrue())
		})
	})
})
