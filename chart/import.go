package chart

import (
	"context"
	"fmt"
	"sort"

	"github.com/corvetik19-lab/finapp-sub014/ledger"
)

// Importer loads chart templates into a tenant's registry.
type Importer struct {
	registry *ledger.Registry
}

func NewImporter(registry *ledger.Registry) *Importer {
	return &Importer{registry: registry}
}

// ImportResult reports what an import did.
type ImportResult struct {
	Created int
	Skipped int // codes the tenant already had
}

// Import creates the given definitions for a tenant. Parents are created
// before children regardless of input order; dotted sub-account codes sort
// after their parent code, and an explicit topological pass covers charts
// that do not follow the dotted convention. Codes that already exist are
// skipped, so re-importing a template is harmless.
func (imp *Importer) Import(ctx context.Context, tenant ledger.TenantID, defs []Definition) (*ImportResult, error) {
	ordered, err := topoOrder(defs)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	for _, def := range ordered {
		existing, err := imp.registry.ResolveByCode(ctx, tenant, def.Code)
		if err != nil && !ledger.IsNotFound(err) {
			return nil, err
		}
		if existing != nil {
			result.Skipped++
			continue
		}

		var parentID ledger.AccountID
		if def.ParentCode != "" {
			parent, err := imp.registry.ResolveByCode(ctx, tenant, def.ParentCode)
			if err != nil {
				return nil, fmt.Errorf("account %s: parent code %s: %w", def.Code, def.ParentCode, err)
			}
			parentID = parent.ID
		}

		if _, err := imp.registry.CreateAccount(ctx, ledger.CreateAccountInput{
			TenantID:   tenant,
			Code:       def.Code,
			Name:       def.Name,
			Type:       def.Type,
			ParentID:   parentID,
			Dimensions: def.Dimensions,
		}); err != nil {
			return nil, fmt.Errorf("account %s: %w", def.Code, err)
		}
		result.Created++
	}
	return result, nil
}

// ImportDefault loads the standard chart.
func (imp *Importer) ImportDefault(ctx context.Context, tenant ledger.TenantID) (*ImportResult, error) {
	return imp.Import(ctx, tenant, Default())
}

// topoOrder sorts definitions so every parent precedes its children.
// Roots come first in code order; each level is appended in code order.
func topoOrder(defs []Definition) ([]Definition, error) {
	byCode := make(map[string]Definition, len(defs))
	for _, def := range defs {
		if _, dup := byCode[def.Code]; dup {
			return nil, fmt.Errorf("duplicate code %s in chart", def.Code)
		}
		byCode[def.Code] = def
	}

	children := make(map[string][]Definition)
	var roots []Definition
	for _, def := range defs {
		if def.ParentCode == "" {
			roots = append(roots, def)
			continue
		}
		if _, ok := byCode[def.ParentCode]; !ok {
			// Parent may already exist in the tenant; treat as a root and
			// let Import resolve the code at creation time.
			roots = append(roots, def)
			continue
		}
		children[def.ParentCode] = append(children[def.ParentCode], def)
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].Code < roots[j].Code })

	var ordered []Definition
	queue := roots
	for len(queue) > 0 {
		def := queue[0]
		queue = queue[1:]
		ordered = append(ordered, def)

		kids := children[def.Code]
		sort.Slice(kids, func(i, j int) bool { return kids[i].Code < kids[j].Code })
		queue = append(queue, kids...)
	}
	if len(ordered) != len(defs) {
		return nil, fmt.Errorf("chart contains a parent cycle")
	}
	return ordered, nil
}
