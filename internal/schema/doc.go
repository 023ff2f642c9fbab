// Package schema validates stage documents before they are stored and again
// when the manifest builder reads them back.
//
// Validation never stops at the first problem: every rule runs and the
// result is a Violations list naming the rule, the offending field path, and
// a message. The list is returned wrapped as a validation error so callers
// can classify it with services.KindOf and still recover the itemized rules
// with errors.As.
package schema
