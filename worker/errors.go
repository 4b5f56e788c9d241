package worker

import "errors"

var errNilHandle = errors.New("factory returned a nil handle")
