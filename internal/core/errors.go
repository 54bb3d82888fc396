package core

import "errors"

// Rendering errors are local and never retried: the template configuration
// has to be fixed.
var (
	ErrEmptyTemplateStore   = errors.New("no templates loaded")
	ErrTemplateNotFound     = errors.New("template not found")
	ErrTemplateFieldMissing = errors.New("template references unknown field")
	ErrTemplateMalformed    = errors.New("malformed template")
	ErrQuantityTooLarge     = errors.New("quantity exceeds copy limit")
)

// ErrInvalidQuantity rejects a job payload whose quantity is not a whole
// number in range.
var ErrInvalidQuantity = errors.New("invalid quantity")

// Transport errors are reported upstream as a job error.
var (
	ErrTransportTimeout           = errors.New("printer timed out")
	ErrTransportConnectionRefused = errors.New("printer refused connection")
	ErrTransportConnectFailed     = errors.New("printer connection failed")
	ErrTransportWriteFailed       = errors.New("printer write failed")
)

// Remote errors degrade job fetching to "no jobs".
var (
	ErrRemoteUnreachable = errors.New("remote service unreachable")
	ErrRemoteBadResponse = errors.New("remote service bad response")
)

var ErrJobNotFound = errors.New("job not found")
