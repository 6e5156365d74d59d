// Package authz decides whether an actor role may run a lifecycle action.
// The collaborator authenticates; this package only looks the role up in a
// capability table.
package authz

import (
	"sort"
	"strings"

	"github.com/ariefcatur/go-order-to-cash/internal/errs"
)

type Role string

const (
	RoleDirector       Role = "director"       // Dirección General
	RoleOperations     Role = "operations"     // Gerencia de Operaciones
	RoleCommercial     Role = "commercial"     // Gerencia Comercial
	RoleMarketing      Role = "marketing"      // Mercadeo
	RoleAdministration Role = "administration" // Gerencia Administrativa
	RoleHR             Role = "hr"             // Gerencia de RRHH
	RoleSystem         Role = "system"         // schedulers inside the process
)

// ParseRole normalises an opaque role string. Unknown roles are kept as-is
// and simply hold no actions.
func ParseRole(s string) Role {
	return Role(strings.ToLower(strings.TrimSpace(s)))
}

type Action string

const (
	ActionCreateProduct    Action = "create_product"
	ActionReceiveStock     Action = "receive_stock"
	ActionRegisterCustomer Action = "register_customer"

	ActionCreateQuotation  Action = "create_quotation"
	ActionEditQuotation    Action = "edit_quotation"
	ActionSubmitQuotation  Action = "submit_quotation"
	ActionApproveQuotation Action = "approve_quotation"
	ActionRejectQuotation  Action = "reject_quotation"

	ActionCreateOrder      Action = "create_order"
	ActionStartPreparation Action = "start_preparation"
	ActionDispatch         Action = "dispatch"
	ActionDeliver          Action = "deliver"
	ActionCancelOrder      Action = "cancel_order"

	ActionReconcileInvoice Action = "reconcile_invoice"
	ActionRecordPayment    Action = "record_payment"
	ActionMarkOverdue      Action = "mark_overdue"
)

type Capability string

const (
	CapOperations Capability = "operations"
	CapCommercial Capability = "commercial"
	CapFinance    Capability = "finance"
)

var capabilityActions = map[Capability][]Action{
	CapOperations: {
		ActionStartPreparation, ActionDispatch, ActionDeliver, ActionCancelOrder,
		ActionReceiveStock, ActionCreateProduct,
	},
	CapCommercial: {
		ActionCreateQuotation, ActionEditQuotation, ActionSubmitQuotation,
		ActionApproveQuotation, ActionRejectQuotation, ActionCreateOrder, ActionCancelOrder,
	},
	CapFinance: {
		ActionReconcileInvoice, ActionRecordPayment,
		ActionMarkOverdue, ActionRegisterCustomer,
	},
}

type grant struct {
	caps    []Capability
	actions []Action
}

var defaultGrants = map[Role]grant{
	RoleDirector:       {caps: []Capability{CapOperations, CapCommercial, CapFinance}},
	RoleOperations:     {caps: []Capability{CapOperations}},
	RoleCommercial:     {caps: []Capability{CapCommercial}},
	RoleMarketing:      {actions: []Action{ActionCreateQuotation, ActionEditQuotation, ActionSubmitQuotation}},
	RoleAdministration: {caps: []Capability{CapFinance}},
	RoleHR:             {},
	RoleSystem:         {actions: []Action{ActionMarkOverdue, ActionReconcileInvoice}},
}

// creditGated actions are refused for a Blocked customer under a hard block policy.
var creditGated = map[Action]bool{
	ActionApproveQuotation: true,
	ActionCreateOrder:      true,
}

type Policy struct {
	HardCreditBlock bool
}

// Gate is read-only after construction and safe for concurrent use.
type Gate struct {
	table  map[Role]map[Action]bool
	policy Policy
}

func NewGate(p Policy) *Gate {
	table := make(map[Role]map[Action]bool, len(defaultGrants))
	for role, g := range defaultGrants {
		set := map[Action]bool{}
		for _, c := range g.caps {
			for _, a := range capabilityActions[c] {
				set[a] = true
			}
		}
		for _, a := range g.actions {
			set[a] = true
		}
		table[role] = set
	}
	return &Gate{table: table, policy: p}
}

func (g *Gate) Allows(role Role, a Action) bool {
	return g.table[role][a]
}

func (g *Gate) Authorize(role Role, a Action) error {
	if !g.Allows(role, a) {
		return errs.Unauthorized(string(role), string(a))
	}
	return nil
}

// AuthorizeCredit is Authorize plus the credit policy: when blocked is true
// and the action is credit-gated, the call fails with CreditExceeded.
func (g *Gate) AuthorizeCredit(role Role, a Action, customerID string, blocked bool) error {
	if err := g.Authorize(role, a); err != nil {
		return err
	}
	if g.policy.HardCreditBlock && blocked && creditGated[a] {
		return errs.CreditExceeded(customerID, "credit status blocked")
	}
	return nil
}

// Actions lists what role may do, sorted. Views use it for menu visibility.
func (g *Gate) Actions(role Role) []Action {
	out := make([]Action, 0, len(g.table[role]))
	for a := range g.table[role] {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
