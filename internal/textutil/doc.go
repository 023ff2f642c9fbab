// Package textutil provides text helpers for project identifiers, asset
// slugs, and prompt-to-asset similarity.
//
// Terms are weighted bags of words: text is lowercased, split on anything
// that is not a letter or digit, and terms shorter than three characters are
// dropped. The media stage scores a scene's visual prompt against library
// file names with Similarity, optionally down-weighting words common to the
// whole library via DocumentFrequency.
package textutil
