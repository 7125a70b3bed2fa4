package credentials

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// ProcessVersion is the credential_process output version understood by
// the AWS SDKs.
const ProcessVersion = 1

// Set is one issued credential set. Values are never updated in place; a
// refresh produces a new Set.
type Set struct {
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
	SessionToken    string `json:"sessionToken"`
	Expiration      string `json:"expiration"`
}

// Envelope is the JSON document returned by the credentials endpoint and
// stored in the cache file.
type Envelope struct {
	Credentials Set `json:"credentials"`
}

// ProcessOutput is the single JSON object written to stdout for a
// credential_process consumer.
type ProcessOutput struct {
	Version         int    `json:"Version"`
	AccessKeyID     string `json:"AccessKeyId"`
	SecretAccessKey string `json:"SecretAccessKey"`
	SessionToken    string `json:"SessionToken"`
	Expiration      string `json:"Expiration"`
}

// ExpiresAt parses the RFC3339 expiration.
func (s Set) ExpiresAt() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s.Expiration)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing expiration %q: %w", s.Expiration, err)
	}
	return t, nil
}

// Validate reports whether all fields needed by a consumer are present.
func (s Set) Validate() error {
	switch {
	case s.AccessKeyID == "":
		return fmt.Errorf("missing accessKeyId")
	case s.SecretAccessKey == "":
		return fmt.Errorf("missing secretAccessKey")
	case s.SessionToken == "":
		return fmt.Errorf("missing sessionToken")
	case s.Expiration == "":
		return fmt.Errorf("missing expiration")
	}
	return nil
}

// AWS converts the set for use with the AWS SDK. An unparsable expiration
// yields credentials that the SDK treats as already expired.
func (s Set) AWS(source string) aws.Credentials {
	creds := aws.Credentials{
		AccessKeyID:     s.AccessKeyID,
		SecretAccessKey: s.SecretAccessKey,
		SessionToken:    s.SessionToken,
		Source:          source,
		CanExpire:       true,
	}
	if exp, err := s.ExpiresAt(); err == nil {
		creds.Expires = exp
	}
	return creds
}

// Process returns the credential_process representation of s.
func (s Set) Process() ProcessOutput {
	return ProcessOutput{
		Version:         ProcessVersion,
		AccessKeyID:     s.AccessKeyID,
		SecretAccessKey: s.SecretAccessKey,
		SessionToken:    s.SessionToken,
		Expiration:      s.Expiration,
	}
}

// Parse decodes an endpoint response body. The body must contain a
// complete credential set.
func Parse(body []byte) (Set, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Set{}, fmt.Errorf("decoding credentials response: %w", err)
	}
	if err := env.Credentials.Validate(); err != nil {
		return Set{}, fmt.Errorf("incomplete credentials response: %w", err)
	}
	return env.Credentials, nil
}

// Marshal encodes s in the envelope format shared by the endpoint and the
// cache file.
func Marshal(s Set) ([]byte, error) {
	return json.Marshal(Envelope{Credentials: s})
}

// WriteProcessOutput writes exactly one JSON object, followed by a newline,
// to w.
func WriteProcessOutput(w io.Writer, s Set) error {
	data, err := json.Marshal(s.Process())
	if err != nil {
		return fmt.Errorf("encoding credential process output: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing credential process output: %w", err)
	}
	return nil
}
