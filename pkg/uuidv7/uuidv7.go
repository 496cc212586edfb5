// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package uuidv7 mints the time-ordered identifiers used for mapping record
// ids and request ids. Time ordering keeps the primary key index append-only.
package uuidv7

import "github.com/google/uuid"

// New returns a UUIDv7 string. It panics only when the OS entropy source fails.
func New() string {
	return uuid.Must(uuid.NewV7()).String()
}
