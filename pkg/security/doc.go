// Package security resolves and loads the client certificate, key, and
// CA bundle the agent presents when fetching steps over mTLS. The
// agent is always a TLS client here: it never issues, rotates, or
// inspects certificates, it only presents whatever pair an operator
// has provisioned and verifies the repository against a trusted CA.
package security
