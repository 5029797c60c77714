// Package temporal runs folder index refreshes as a durable Temporal
// workflow so a long rebuild survives restarts of the CLI.
package temporal
