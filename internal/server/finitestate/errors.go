package finitestate

import "errors"

var ErrUnexpectedState = errors.New("unexpected state")
