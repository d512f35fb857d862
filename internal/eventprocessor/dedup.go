// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package eventprocessor

import (
	"github.com/ThreeDotsLabs/watermill/message"
)

// eventIDKey keys deduplication on the event id carried in metadata. The
// message UUID is the fallback for messages published by other code.
func eventIDKey(msg *message.Message) (string, error) {
	if id := msg.Metadata.Get(MetadataEventID); id != "" {
		return id, nil
	}
	return msg.UUID, nil
}
