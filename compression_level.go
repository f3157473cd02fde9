// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package expurgate

import "fmt"

// CompressionLevel is the requested compression effort, 0 (store) to 9 (best).
type CompressionLevel int

const (
	MinCompressionLevel     CompressionLevel = 0
	MaxCompressionLevel     CompressionLevel = 9
	DefaultCompressionLevel CompressionLevel = 6
)

// Validate returns an [ErrInvalidCompressionLevel] error if l is out of range.
func (l CompressionLevel) Validate() error {
	if l < MinCompressionLevel || l > MaxCompressionLevel {
		return newError(ErrInvalidCompressionLevel, StageFilterSetup, fmt.Errorf("level %d is not between %d and %d", l, MinCompressionLevel, MaxCompressionLevel))
	}
	return nil
}
