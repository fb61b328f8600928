// Package id provides unique identifier generation for composition jobs.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Generate creates a new unique job ID.
// Format: reel-<timestamp>-<random>
// Example: reel-1701432000-a1b2c3d4
func Generate() string {
	timestamp := time.Now().Unix()
	random := make([]byte, 4)
	if _, err := rand.Read(random); err != nil {
		// Fallback to timestamp only if crypto/rand fails
		return fmt.Sprintf("reel-%d", timestamp)
	}
	return fmt.Sprintf("reel-%d-%s", timestamp, hex.EncodeToString(random))
}
