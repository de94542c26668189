package spidpassport

import (
	"github.com/BeAdopt/spid-passport/internal/adapters/driven/engine"
	"github.com/BeAdopt/spid-passport/internal/core/ports"
)

// Re-export the protocol engine port and the crewjam/saml-backed adapter
type ProtocolEngine = ports.ProtocolEngine
type ValidationResult = ports.ValidationResult
type Operation = ports.Operation
type EngineOption = engine.Option

const (
	OperationLogin  = ports.OperationLogin
	OperationLogout = ports.OperationLogout
)

var (
	NewProtocolEngine = engine.NewEngine
	WithEngineLogger  = engine.WithLogger
)
