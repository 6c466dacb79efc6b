package repository

import "errors"

var (
	ErrTemplateNotFound = errors.New("template not found")
	ErrUnknownClient    = errors.New("unknown client")
)
