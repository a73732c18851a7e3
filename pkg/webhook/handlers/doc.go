// Package handlers contains the admission handlers for JellyfinServer
// resources: a defaulter that materializes the configuration defaults into
// the stored spec, and a validator that rejects specs the workload cannot
// run with.
package handlers
