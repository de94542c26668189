package spidpassport

import (
	"github.com/BeAdopt/spid-passport/internal/core/ports"
)

// Re-export the strategy outcome surface from ports
type Responder = ports.Responder
type VerifyFunc = ports.VerifyFunc
type VerifyRequestFunc = ports.VerifyRequestFunc
type SessionEnder = ports.SessionEnder
type SessionEnderFunc = ports.SessionEnderFunc
