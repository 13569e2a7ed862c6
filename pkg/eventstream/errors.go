package eventstream

import "errors"

// ErrNilPersonEvent indicates a nil event payload was provided to a publisher.
var ErrNilPersonEvent = errors.New("nil person event")
