package stagedoc

import "errors"

// ErrUnsupportedVersion is returned when a document was written with a
// schema version this build cannot read.
var ErrUnsupportedVersion = errors.New("unsupported schema version")
