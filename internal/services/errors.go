package services

import "errors"

// Sentinel errors surfaced to handlers. NotFound maps to 404, NameTaken and
// AlreadyMember to 409, PublishInProgress to 409 as well.
var (
	ErrNotFound          = errors.New("not found")
	ErrNameTaken         = errors.New("name already in use")
	ErrAlreadyMember     = errors.New("user is already a member of this project")
	ErrPublishInProgress = errors.New("a publish is already running for this project")
)
