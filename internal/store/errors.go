package store

import (
	"github.com/xtxerr/sensorstats/internal/errors"
)

var (
	ErrDatabase    = errors.ErrDatabase
	ErrStoreClosed = errors.ErrStoreClosed
)
