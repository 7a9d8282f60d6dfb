package core

import (
	"errors"
)

var (
	ErrNoStagesEnabled     = errors.New("no shader stages enabled")
	ErrNoOutgoingStage     = errors.New("stage has no linked successor for outgoing variables")
	ErrUnknownShaderItem   = errors.New("unknown shader item type")
	ErrDeclarationConflict = errors.New("conflicting shader declarations")
	ErrUnresolvedSource    = errors.New("shader source still has deferred declarations")
	ErrCollectionFormat    = errors.New("not a shader collection")
	ErrCollectionVersion   = errors.New("shader collection version mismatch")
	ErrIncludeNotFound     = errors.New("shader include not found")
	ErrIncludeCycle        = errors.New("shader include cycle")
	ErrUnterminatedInclude = errors.New("unterminated include directive")
	ErrInvalidConfig       = errors.New("invalid configuration")
	ErrInvalidMaterialKey  = errors.New("invalid material key")
	ErrUnknown             = errors.New("unknown")
)
