package matcher

import "errors"

// ErrUnknownStrategy is returned for an unsupported selection strategy name.
var ErrUnknownStrategy = errors.New("unknown media selection strategy")
