// Package language normalizes the language a project is narrated in.
//
// Briefs may name a language as an ISO 639-1 or 639-2 code or as an English
// word ("spanish"); everything is mapped to the two-letter form stored in
// topic documents, and Tag converts that to an x/text tag for casing rules.
package language
