// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package recommend

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

const cursorPrefix = "o:"

// EncodeCursor returns the opaque cursor for an offset into a sorted list.
func EncodeCursor(offset int) string {
	return base64.RawURLEncoding.EncodeToString([]byte(cursorPrefix + strconv.Itoa(offset)))
}

// DecodeCursor parses a cursor. The empty cursor is offset 0.
func DecodeCursor(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed cursor", ErrInvalidInput)
	}
	s := string(raw)
	if !strings.HasPrefix(s, cursorPrefix) {
		return 0, fmt.Errorf("%w: malformed cursor", ErrInvalidInput)
	}
	offset, err := strconv.Atoi(strings.TrimPrefix(s, cursorPrefix))
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("%w: malformed cursor", ErrInvalidInput)
	}
	return offset, nil
}

// page returns the [offset, offset+limit) window bounds of a list of length
// total, and the cursor of the following page.
func page(total, offset, limit int) (start, end int, next string, more bool) {
	start = min(offset, total)
	end = min(start+limit, total)
	if end < total {
		return start, end, EncodeCursor(end), true
	}
	return start, end, "", false
}
