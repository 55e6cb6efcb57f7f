// Package crawler defines the domain types, ports, and error regimes shared by
// the archive harvester: raw documents handed over by a Fetcher, the field
// records appended to the Output Store, and the cursor persisted between
// rounds.
package crawler
