// Package credentials defines the short-lived credential set issued by the
// credentials endpoint, its JSON envelope, and the credential_process output
// format consumed by the AWS SDKs and CLI.
package credentials
