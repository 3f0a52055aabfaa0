// Package archive defines the no-op raw HTML archive.
//
// Provider implementations live in subpackages (memory, local, gcs); all
// of them satisfy the scraper.Archive interface.
package archive

import "context"

// Noop discards archived content. It is the default provider for
// deployments that only want extracted text.
type Noop struct{}

// Put does nothing and returns an empty URI.
func (Noop) Put(_ context.Context, _ string, _ string, _ []byte) (string, error) {
	return "", nil
}
