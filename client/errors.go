package client

import sgerrors "github.com/jrsteele09/go-session-guard/internal/errors"

// Errors returned by Client. Match them with errors.Is / errors.As.
var (
	ErrAuthenticationRequired = sgerrors.ErrAuthenticationRequired
	ErrRefreshFailed          = sgerrors.ErrRefreshFailed
	ErrNoRefreshPath          = sgerrors.ErrNoRefreshPath
	ErrReplayFailed           = sgerrors.ErrReplayFailed
	ErrRequestFailed          = sgerrors.ErrRequestFailed
)

type (
	RefreshError       = sgerrors.RefreshError
	RequestFailedError = sgerrors.RequestFailedError
	ReplayFailedError  = sgerrors.ReplayFailedError
)
