// Package pathtemplate implements the small template language administrators
// use to describe how a library lays out models on disk.
//
// A template is a slash-separated sequence of literal segments and {token}
// placeholders: {library}, {model} and {metadata.<slug>}. Templates are
// validated structurally at library-configuration time, and resolved against
// a concrete model at ingestion time with every substituted value sanitized,
// so crafted names or metadata can never escape the library root.
package pathtemplate
