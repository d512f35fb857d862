// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

/*
Package catalog stores the library and the external catalog in DuckDB and
serves every read the ranking engines need from it.

A single DuckDBStore satisfies several narrow interfaces:

  - recommend.CandidateSource: external entries updated inside a time window
  - recommend.LibraryMembership: whether an identity is already owned
  - recommend.Retriever: the four search channels per catalog and hydration
  - profile.ActivitySource: tags and cover vectors of recently read items
  - feedback.VectorResolver: cover and interior vectors for profile updates

# Schema

	catalog_items    one row per item; vectors are float32 little-endian BLOBs
	catalog_tags     normalized tags, in their original order
	library_sources  which external entries a library work was imported from
	activity         user reads, newest first

Ownership of an external entry is derived: it is owned when any library work
lists it in library_sources. Library works are always owned.

# Search channels

Text matching uses ILIKE over titles, requiring every query term. Tag overlap
counts the query tags an item carries, where a bare tag ("fantasy") matches a
namespaced one ("genre:fantasy"). Nearest-neighbor channels scan the vector
column of the catalog and rank by cosine similarity in Go.

# Usage

	store, err := catalog.Open(ctx, catalog.Options{Path: "data/catalog.duckdb"}, logger)
	if err != nil {
	    return err
	}
	defer store.Close()

	n, err := store.Import(ctx, seedFile)
*/
package catalog
