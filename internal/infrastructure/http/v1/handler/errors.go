package handler

import "errors"

var (
	ErrFailedToDecodeRequestBody = errors.New("failed to decode request body")
	ErrUnknownTileState          = errors.New("unknown tile state")
	ErrEngineStopped             = errors.New("tile engine is not running")
	InternalServerError          = errors.New("server encountered a problem and could not process your request")
)
