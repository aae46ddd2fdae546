package session

import (
	"errors"

	"github.com/keshon/tunebooth/internal/music/player"
)

var (
	ErrAlreadyExists    = errors.New("session already exists")
	ErrSessionDestroyed = errors.New("session destroyed")
	ErrNothingPlaying   = player.ErrNothingPlaying
	ErrPermissionDenied = errors.New("missing permission to join voice channel")
	ErrNotConnected     = errors.New("not connected to a voice channel")
)
