package eventstream

import "errors"

// ErrNilTurnEvent is returned by every Publisher when asked to publish a nil
// turn summary. The stop hook logs it and moves on.
var ErrNilTurnEvent = errors.New("nil turn event")
