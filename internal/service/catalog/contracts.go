package catalog

import "palmshell-dispatch/internal/domain"

// Authorizer checks role capabilities.
type Authorizer interface {
	Require(actor domain.Actor, resource, action string) error
}
