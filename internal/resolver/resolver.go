package resolver

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tribunal-cli/internal/model"
	"github.com/sells-group/tribunal-cli/internal/store"
)

// Store is the subset of the document store the resolver needs.
type Store interface {
	CreateParty(ctx context.Context, p *model.Party) error
	GetPartyByNormalizedName(ctx context.Context, normalized string) (*model.Party, error)
	ListParties(ctx context.Context) ([]model.Party, error)
	UpdatePartyAggregates(ctx context.Context, partyID string, agg store.PartyAggregates) error
	DeleteParty(ctx context.Context, partyID string) error
	CreateCaseParty(ctx context.Context, cp *model.CaseParty) error
	ListPartyCaseLinks(ctx context.Context, partyID string) ([]store.PartyCaseLink, error)
	RepointCaseParty(ctx context.Context, linkID, newPartyID string) error
	DeleteCaseParty(ctx context.Context, linkID string) error
}

// Resolver performs the online per-record party upsert and the offline merge.
type Resolver struct {
	store Store
}

// New creates a Resolver.
func New(s Store) *Resolver {
	return &Resolver{store: s}
}

// ResolveCase upserts both parties of a stored case record, links them with
// their roles, and recomputes each party's aggregates. The record must
// already have an ID.
func (r *Resolver) ResolveCase(ctx context.Context, rec *model.CaseRecord) error {
	if rec.ID == "" {
		return eris.New("resolver: case record has no id")
	}

	sides := []struct {
		name  string
		ptype model.PartyType
		role  model.CaseRole
	}{
		{rec.ApplicantName, rec.ApplicantType, model.RoleApplicant},
		{rec.RespondentName, rec.RespondentType, model.RoleRespondent},
	}

	for _, side := range sides {
		if side.name == "" {
			continue
		}
		party, err := r.upsertParty(ctx, side.name, side.ptype)
		if err != nil {
			return err
		}
		if err := r.store.CreateCaseParty(ctx, &model.CaseParty{
			CaseID:    rec.ID,
			PartyID:   party.ID,
			Role:      side.role,
			PartyType: side.ptype,
		}); err != nil {
			return eris.Wrapf(err, "resolver: link %s to case %s", party.NormalizedName, rec.Reference)
		}
		if err := r.Recompute(ctx, party.ID); err != nil {
			return err
		}
	}
	return nil
}

// upsertParty looks a party up by normalized name, creating it if absent. A
// duplicate-key race on insert falls back to the winning row.
func (r *Resolver) upsertParty(ctx context.Context, name string, ptype model.PartyType) (*model.Party, error) {
	normalized := Normalize(name)
	party, err := r.store.GetPartyByNormalizedName(ctx, normalized)
	if err != nil {
		return nil, eris.Wrapf(err, "resolver: lookup party %s", normalized)
	}
	if party != nil {
		return party, nil
	}

	party = &model.Party{
		DisplayName:    name,
		NormalizedName: normalized,
		Type:           ptype,
	}
	err = r.store.CreateParty(ctx, party)
	if err == nil {
		return party, nil
	}
	if !eris.Is(err, store.ErrConflict) {
		return nil, eris.Wrapf(err, "resolver: create party %s", normalized)
	}

	// lost the insert race; the other writer's row wins
	party, err = r.store.GetPartyByNormalizedName(ctx, normalized)
	if err != nil {
		return nil, eris.Wrapf(err, "resolver: re-query party %s", normalized)
	}
	if party == nil {
		return nil, eris.Errorf("resolver: party %s vanished after conflict", normalized)
	}
	return party, nil
}

// Recompute re-derives a party's aggregate counters from all of its case
// links. Records sharing a date and case-reference prefix count as one
// logical case.
func (r *Resolver) Recompute(ctx context.Context, partyID string) error {
	links, err := r.store.ListPartyCaseLinks(ctx, partyID)
	if err != nil {
		return eris.Wrapf(err, "resolver: list links for party %s", partyID)
	}

	type caseGroup struct {
		roles       map[model.CaseRole]bool
		enforcement bool
		amount      *float64
	}
	groups := map[string]*caseGroup{}

	for _, l := range links {
		key := l.Date.Format("2006-01-02") + "|" + model.CaseKey(l.Reference)
		g, ok := groups[key]
		if !ok {
			g = &caseGroup{roles: map[model.CaseRole]bool{}}
			groups[key] = g
		}
		g.roles[l.Role] = true
		if l.SourceType == model.SourceEnforcement {
			g.enforcement = true
		}
		if g.amount == nil && l.CompensationAmount != nil {
			g.amount = l.CompensationAmount
		}
	}

	var agg store.PartyAggregates
	agg.TotalCases = len(groups)
	for _, g := range groups {
		if g.roles[model.RoleApplicant] {
			agg.CasesAsApplicant++
		}
		if g.roles[model.RoleRespondent] {
			agg.CasesAsRespondent++
		}
		if g.enforcement {
			agg.EnforcementCases++
		}
		if g.amount != nil {
			if g.roles[model.RoleApplicant] {
				agg.AwardedFor += *g.amount
			}
			if g.roles[model.RoleRespondent] {
				agg.AwardedAgainst += *g.amount
			}
		}
	}

	if err := r.store.UpdatePartyAggregates(ctx, partyID, agg); err != nil {
		return eris.Wrapf(err, "resolver: update aggregates for party %s", partyID)
	}
	zap.L().Debug("party aggregates recomputed",
		zap.String("party_id", partyID),
		zap.Int("total_cases", agg.TotalCases),
	)
	return nil
}

// RecomputeAll refreshes the aggregates of every known party. Run after a
// verifier batch so awarded totals pick up newly extracted amounts.
func (r *Resolver) RecomputeAll(ctx context.Context) error {
	parties, err := r.store.ListParties(ctx)
	if err != nil {
		return eris.Wrap(err, "resolver: list parties")
	}
	for _, p := range parties {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "resolver: recompute all cancelled")
		}
		if err := r.Recompute(ctx, p.ID); err != nil {
			return err
		}
	}
	return nil
}
