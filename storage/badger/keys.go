package badger

import "fmt"

// Key prefixes for different data types
const (
	checkpointPrefix = "chkpt"
	ledgerPrefix     = "ledger"
)

// makeCheckpointKey generates a key for processor checkpoints.
func makeCheckpointKey(processorType string) []byte {
	return []byte(fmt.Sprintf("%s:%s", checkpointPrefix, processorType))
}

// makeLedgerKey generates a key for an applied artifact.
// Artifact names sort lexicographically, so do their keys.
func makeLedgerKey(artifact string) []byte {
	return []byte(fmt.Sprintf("%s:%s", ledgerPrefix, artifact))
}

// ledgerScanPrefix is the iteration prefix for all ledger keys.
func ledgerScanPrefix() []byte {
	return []byte(ledgerPrefix + ":")
}
