package domain

import "errors"

var (
	ErrContentNotFound   = errors.New("content not found")
	ErrDuplicateContent  = errors.New("duplicate content")
	ErrQueueItemNotFound = errors.New("queue item not found")
	ErrProviderNotFound  = errors.New("provider not found")
	ErrProviderDisabled  = errors.New("provider disabled")
	ErrSessionNotFound   = errors.New("session not found")
)
