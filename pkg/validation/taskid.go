// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for identifiers
// that end up in database keys.
//
// Task and edge identifiers are user-provided and are embedded directly in
// storage key paths. Using these validators prevents key-space collisions
// and injection through separator or control characters.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// MaxTaskIDLength is the maximum accepted task identifier length in bytes.
const MaxTaskIDLength = 128

// invalidTaskIDChars matches characters that may not appear in a task id.
// Colons are the storage key separator; control characters (including
// newline and DEL) corrupt keys and log lines.
var invalidTaskIDChars = regexp.MustCompile(`[:\x00-\x1F\x7F]`)

// ValidateTaskID validates a task identifier for use in storage keys.
//
// Valid task ids:
//   - 1-128 bytes
//   - not blank (whitespace-only is rejected)
//   - no colons
//   - no control characters
//
// Returns an error if the id is invalid.
//
// Example:
//
//	if err := validation.ValidateTaskID(id); err != nil {
//	    return fmt.Errorf("invalid task id: %w", err)
//	}
//	// Safe to embed in a storage key
func ValidateTaskID(id string) error {
	if id == "" {
		return fmt.Errorf("task id cannot be empty")
	}

	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("task id cannot be blank")
	}

	if len(id) > MaxTaskIDLength {
		return fmt.Errorf("task id too long: %d bytes (max %d)", len(id), MaxTaskIDLength)
	}

	if loc := invalidTaskIDChars.FindStringIndex(id); loc != nil {
		return fmt.Errorf("task id contains forbidden character at byte %d (colons and control characters are not allowed)", loc[0])
	}

	return nil
}

// ValidateTaskIDs validates multiple task identifiers.
// Returns an error listing all invalid ids if any fail validation.
func ValidateTaskIDs(ids []string) error {
	var invalid []string
	for _, id := range ids {
		if err := ValidateTaskID(id); err != nil {
			invalid = append(invalid, id)
		}
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid task ids: %v", invalid)
	}
	return nil
}

// ValidateEdgeID validates a dependency edge identifier.
//
// Edge ids are engine-assigned UUIDv4 strings; anything that does not parse
// as a UUID is rejected before it reaches storage.
func ValidateEdgeID(id string) error {
	if id == "" {
		return fmt.Errorf("edge id cannot be empty")
	}

	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid edge id %q: %w", id, err)
	}

	return nil
}

// SanitizeTaskID normalizes and validates a task identifier.
// Returns the trimmed id if valid, or an error if invalid.
//
// Use this on CLI and API input where surrounding whitespace is likely:
//
//	safeID, err := validation.SanitizeTaskID(userInput)
//	if err != nil {
//	    return err
//	}
//	// safeID is trimmed and validated
func SanitizeTaskID(id string) (string, error) {
	normalized := strings.TrimSpace(id)
	if err := ValidateTaskID(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
