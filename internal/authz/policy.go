package authz

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"palmshell-dispatch/internal/apperr"
	"palmshell-dispatch/internal/domain"
)

// Resources.
const (
	ResOrder    = "order"
	ResPayment  = "payment"
	ResDelivery = "delivery"
	ResDriver   = "driver"
	ResTracking = "tracking"
	ResWaybill  = "waybill"
	ResDebug    = "debug"
	ResProduct  = "product"
	ResAccount  = "account"
)

// Actions.
const (
	ActCreate       = "create"
	ActRead         = "read"
	ActList         = "list"
	ActApprove      = "approve"
	ActCancel       = "cancel"
	ActCheckout     = "checkout"
	ActAssign       = "assign"
	ActUpdate       = "update"
	ActComplete     = "complete"
	ActRecord       = "record"
	ActAvailability = "set_availability"
	ActIssue        = "issue"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && (p.obj == "*" || r.obj == p.obj) && (p.act == "*" || r.act == p.act)
`

var defaultRules = [][]string{
	{string(domain.RoleAdmin), "*", "*"},

	{string(domain.RoleMitra), ResOrder, ActCreate},
	{string(domain.RoleMitra), ResOrder, ActRead},
	{string(domain.RoleMitra), ResOrder, ActList},
	{string(domain.RoleMitra), ResOrder, ActCancel},
	{string(domain.RoleMitra), ResPayment, ActCheckout},
	{string(domain.RoleMitra), ResTracking, ActRead},
	{string(domain.RoleMitra), ResWaybill, ActRead},
	{string(domain.RoleMitra), ResProduct, ActRead},
	{string(domain.RoleMitra), ResProduct, ActList},
	{string(domain.RoleMitra), ResAccount, ActUpdate},

	{string(domain.RoleDriver), ResOrder, ActRead},
	{string(domain.RoleDriver), ResOrder, ActList},
	{string(domain.RoleDriver), ResDelivery, ActRead},
	{string(domain.RoleDriver), ResDelivery, ActUpdate},
	{string(domain.RoleDriver), ResDelivery, ActComplete},
	{string(domain.RoleDriver), ResTracking, ActRecord},
	{string(domain.RoleDriver), ResTracking, ActRead},
	{string(domain.RoleDriver), ResDriver, ActAvailability},
	{string(domain.RoleDriver), ResWaybill, ActRead},
	{string(domain.RoleDriver), ResProduct, ActRead},
	{string(domain.RoleDriver), ResProduct, ActList},
	{string(domain.RoleDriver), ResAccount, ActUpdate},
}

// Policy is the role capability table. Ownership is checked by the caller.
type Policy struct {
	enforcer *casbin.Enforcer
}

// NewPolicy builds the policy with the built-in rules.
func NewPolicy() (*Policy, error) {
	return NewPolicyWithRules(defaultRules)
}

// NewPolicyWithRules builds the policy from explicit (role, resource, action) rules.
func NewPolicyWithRules(rules [][]string) (*Policy, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("authz model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("authz enforcer: %w", err)
	}
	if len(rules) > 0 {
		if _, err := e.AddPolicies(rules); err != nil {
			return nil, fmt.Errorf("authz rules: %w", err)
		}
	}
	return &Policy{enforcer: e}, nil
}

// Allowed reports whether the actor's role grants action on resource.
func (p *Policy) Allowed(actor domain.Actor, resource, action string) bool {
	if actor.ID <= 0 || !actor.Role.Valid() {
		return false
	}
	ok, err := p.enforcer.Enforce(string(actor.Role), resource, action)
	return err == nil && ok
}

// Require returns apperr.ErrForbidden unless the actor is allowed.
func (p *Policy) Require(actor domain.Actor, resource, action string) error {
	if !p.Allowed(actor, resource, action) {
		return fmt.Errorf("%s %s by %s: %w", action, resource, actor.Role, apperr.ErrForbidden)
	}
	return nil
}
