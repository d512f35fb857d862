// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

/*
Package validation validates HTTP request parameters with
go-playground/validator v10.

A single validator instance is created on first use and caches struct
metadata. Field names in error messages come from the json tag, so clients
see the parameter names they sent.

# Custom Tags

  - identity: a catalog identity, "work:<id>" or "external:<source>:<token>"
  - userid: 1-128 printable characters without '/' or whitespace
  - tag: a non-empty tag of at most 64 characters

# Request Types

SearchParams, ImageSearchParams, RecommendParams and FeedbackParams mirror
the query strings and bodies of the API routes. Handlers fill them, call
ValidateStruct and convert failures with ToAPIError:

	params := validation.SearchParams{Query: r.URL.Query().Get("q"), ...}
	if verr := validation.ValidateStruct(&params); verr != nil {
	    apiErr := verr.ToAPIError()
	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
	    return
	}
*/
package validation
