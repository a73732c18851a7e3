// Package cert bootstraps TLS material for the admission webhook server
// when no external certificate management is available. It generates a
// self-signed CA plus a serving certificate, stores both in a Secret so
// restarts and peer replicas reuse them, writes the serving pair to disk
// for the webhook server, and injects the CA bundle into the webhook
// configurations that point at the operator's Service.
package cert
