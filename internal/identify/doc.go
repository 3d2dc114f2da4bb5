// Package identify resolves one evidence item into ranked product candidates.
//
// URL evidence goes through the library first, then a page fetch that
// prefers JSON-LD and Open Graph data, then text inference over the page
// excerpt. When a site blocks scraping the identifier falls back to URL
// intelligence: the brand catalog maps the domain and URL slug to a brand
// and a best-guess product name. Image evidence is identified against the
// census objects and refined until a candidate clears the early-exit
// confidence. Text evidence is a single inference call.
//
// Resolution never returns an error for a single item. Failures come back as
// an Outcome with a kind and a taxonomy-marked error so callers can turn them
// into warnings. Gate supersedes in-flight requests that share a query
// context.
package identify
