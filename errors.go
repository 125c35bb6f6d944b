package societyadmin

import "errors"

var ErrSessionNotFound = errors.New("session not found")
var ErrHistoryDisabled = errors.New("history is disabled: no database configured")
var ErrInvalidReviewStatus = errors.New("review status must be approved or rejected")
var ErrNotFound = errors.New("record not found")
