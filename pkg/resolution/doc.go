// Package resolution implements the automated issue resolution engine.
//
// Resolution proceeds in two stages. A deterministic rule classifier maps
// the customer's free text (English or Malayalam) to a category and
// subcategory. The matching template from the knowledge base is then run
// step by step: each step performs one action through a collaborator sink
// and falls back through its fallback chain on failure. Steps never run
// concurrently within one resolution.
//
// Driver-behavior issues are never resolved automatically; they are handed
// to a human without running any template steps.
package resolution
