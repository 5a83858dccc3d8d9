/*
registry.go - Account registry (chart of accounts)

PURPOSE:
  Owns the chart of accounts: creation, hierarchy, deactivation, lookup.
  The registry is the validation gate for the journal - Post refuses
  accounts the registry does not know or has deactivated.

HIERARCHY:
  Accounts form a forest via ParentID. The parent chain is acyclic; the
  check walks parent pointers with a visited set, bounded by the chart
  size. Creation cannot introduce a cycle (the new node has no children
  yet) but reparenting can, so both paths share the same walk.

DEACTIVATION POLICY:
  An account with postings in the open period (the current calendar
  quarter) cannot be deactivated. Deactivation never deletes history;
  the account simply stops accepting new postings.
*/
package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Registry manages a tenant's chart of accounts.
type Registry struct {
	store TxStore
	now   func() time.Time
}

// NewRegistry creates a Registry backed by store.
func NewRegistry(store TxStore) *Registry {
	return &Registry{store: store, now: time.Now}
}

// WithClock overrides the time source. The open-period check for
// deactivation derives the current quarter from it.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// CreateAccountInput holds parameters for CreateAccount.
type CreateAccountInput struct {
	TenantID   TenantID
	Code       string
	Name       string
	Type       AccountType
	ParentID   AccountID // optional
	Dimensions map[string]string
}

// CreateAccount adds an account to the tenant's chart.
// Fails with ValidationError on malformed input, ConflictError if the code
// is already taken or the parent chain would not be a tree.
func (r *Registry) CreateAccount(ctx context.Context, input CreateAccountInput) (*Account, error) {
	if input.TenantID == "" {
		return nil, &ValidationError{Field: "tenant_id", Reason: "required"}
	}
	code := strings.TrimSpace(input.Code)
	if code == "" {
		return nil, &ValidationError{Field: "code", Reason: "required"}
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, &ValidationError{Field: "name", Reason: "required"}
	}
	if !input.Type.Valid() {
		return nil, &ValidationError{Field: "type", Reason: "unknown account type " + string(input.Type)}
	}

	account := Account{
		ID:         AccountID(uuid.NewString()),
		TenantID:   input.TenantID,
		Code:       code,
		Name:       strings.TrimSpace(input.Name),
		Type:       input.Type,
		ParentID:   input.ParentID,
		Dimensions: input.Dimensions,
		IsActive:   true,
		CreatedAt:  r.now().UTC(),
	}

	err := r.store.WithTx(ctx, func(s Store) error {
		existing, err := s.AccountByCode(ctx, input.TenantID, code)
		if err != nil {
			return err
		}
		if existing != nil {
			return &ConflictError{Reason: "account code " + code + " already exists"}
		}
		if input.ParentID != "" {
			if err := r.checkParentChain(ctx, s, input.TenantID, account.ID, input.ParentID); err != nil {
				return err
			}
		}
		return s.SaveAccount(ctx, account)
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// Reparent moves an account under a new parent (empty parent = top level).
// Fails with ConflictError if the move would create a cycle.
func (r *Registry) Reparent(ctx context.Context, tenant TenantID, id, newParent AccountID) error {
	return r.store.WithTx(ctx, func(s Store) error {
		account, err := s.Account(ctx, tenant, id)
		if err != nil {
			return err
		}
		if account == nil {
			return &NotFoundError{Kind: "account", ID: string(id)}
		}
		if newParent != "" {
			if err := r.checkParentChain(ctx, s, tenant, id, newParent); err != nil {
				return err
			}
		}
		account.ParentID = newParent
		return s.SaveAccount(ctx, *account)
	})
}

// checkParentChain verifies the parent exists in the tenant and that walking
// parent pointers from it never reaches id (which would close a cycle).
func (r *Registry) checkParentChain(ctx context.Context, s Store, tenant TenantID, id, parent AccountID) error {
	visited := map[AccountID]bool{id: true}
	current := parent
	for current != "" {
		if visited[current] {
			return &ConflictError{Reason: "parent chain would create a cycle at account " + string(current)}
		}
		visited[current] = true

		node, err := s.Account(ctx, tenant, current)
		if err != nil {
			return err
		}
		if node == nil {
			return &ValidationError{Field: "parent_id", Reason: "parent account " + string(current) + " not found in tenant"}
		}
		current = node.ParentID
	}
	return nil
}

// Resolve returns the account or NotFoundError.
func (r *Registry) Resolve(ctx context.Context, tenant TenantID, id AccountID) (*Account, error) {
	account, err := r.store.Account(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, &NotFoundError{Kind: "account", ID: string(id)}
	}
	return account, nil
}

// ResolveByCode returns the account with the given code or NotFoundError.
func (r *Registry) ResolveByCode(ctx context.Context, tenant TenantID, code string) (*Account, error) {
	account, err := r.store.AccountByCode(ctx, tenant, code)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, &NotFoundError{Kind: "account", ID: code}
	}
	return account, nil
}

// List returns the tenant's chart ordered by code.
func (r *Registry) List(ctx context.Context, tenant TenantID) ([]Account, error) {
	return r.store.Accounts(ctx, tenant)
}

// Deactivate marks an account inactive. Fails with ConflictError if the
// account has postings in the open period. History is never deleted.
func (r *Registry) Deactivate(ctx context.Context, tenant TenantID, id AccountID) error {
	return r.store.WithTx(ctx, func(s Store) error {
		account, err := s.Account(ctx, tenant, id)
		if err != nil {
			return err
		}
		if account == nil {
			return &NotFoundError{Kind: "account", ID: string(id)}
		}
		if !account.IsActive {
			return nil
		}

		year, quarter := QuarterOf(r.now())
		open := QuarterPeriod(year, quarter)
		posted, err := s.HasEntries(ctx, tenant, id, open.Start, open.End)
		if err != nil {
			return err
		}
		if posted {
			return &ConflictError{Reason: "account " + account.Code + " has postings in the open period"}
		}
		return s.SetAccountActive(ctx, tenant, id, false)
	})
}
