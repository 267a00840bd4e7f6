package storage

import "errors"

// Sentinels are plain stdlib errors so wrapped returns stay matchable
// with errors.Is.
var ErrUnknownCollection = errors.New("unknown collection")
