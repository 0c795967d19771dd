package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tribunal-cli/internal/model"
	"github.com/sells-group/tribunal-cli/internal/store"
)

func TestMergeCollapsesLegalSuffixVariants(t *testing.T) {
	m := newMemStore()
	r := New(m)
	ctx := context.Background()

	c1 := m.addCase("DR0100", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), model.SourceDisputes, nil)
	c2 := m.addCase("DR0200", time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), model.SourceDisputes, nil)
	c3 := m.addCase("DR0300", time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), model.SourceDisputes, nil)

	// "acme property ltd" appears in two cases, "acme property limited" in one
	resolveSides(t, r, c1, "A Tenant", "Acme Property Ltd")
	resolveSides(t, r, c2, "B Tenant", "Acme Property Ltd")
	resolveSides(t, r, c3, "C Tenant", "Acme Property Limited")

	result, err := r.Merge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.GroupsMerged)
	assert.Equal(t, 1, result.PartiesRemoved)
	assert.Equal(t, 1, result.LinksRepointed)

	// the variant with more cases is canonical
	canonical := m.partyByName(t, "acme property ltd")
	assert.Equal(t, 3, canonical.TotalCases)
	assert.Equal(t, 3, canonical.CasesAsRespondent)

	gone, err := m.GetPartyByNormalizedName(ctx, "acme property limited")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestMergeIsIdempotent(t *testing.T) {
	m := newMemStore()
	r := New(m)
	ctx := context.Background()

	c1 := m.addCase("DR0100", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), model.SourceDisputes, nil)
	c2 := m.addCase("DR0200", time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), model.SourceDisputes, nil)
	resolveSides(t, r, c1, "A Tenant", "Hillside Rentals Ltd")
	resolveSides(t, r, c2, "B Tenant", "Hillside Rentals Limited")

	first, err := r.Merge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.PartiesRemoved)

	second, err := r.Merge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.GroupsMerged)
	assert.Equal(t, 0, second.PartiesRemoved)

	canonical := m.partyByName(t, Normalize("Hillside Rentals Ltd"))
	assert.Equal(t, 2, canonical.TotalCases)
}

func TestMergeRecomputesAllParties(t *testing.T) {
	m := newMemStore()
	r := New(m)
	ctx := context.Background()

	c1 := m.addCase("DR0100", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), model.SourceDisputes, nil)
	c2 := m.addCase("DR0200", time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), model.SourceDisputes, nil)
	resolveSides(t, r, c1, "A Tenant", "Acme Property Ltd")
	resolveSides(t, r, c2, "B Tenant", "Acme Property Limited")

	// a party outside every merge group with counters gone stale
	bystander := m.partyByName(t, Normalize("A Tenant"))
	require.NoError(t, m.UpdatePartyAggregates(ctx, bystander.ID, store.PartyAggregates{TotalCases: 99}))

	_, err := r.Merge(ctx)
	require.NoError(t, err)

	healed := m.partyByName(t, Normalize("A Tenant"))
	assert.Equal(t, 1, healed.TotalCases)
	assert.Equal(t, 1, healed.CasesAsApplicant)
}

func TestMergeDropsDuplicateLinks(t *testing.T) {
	m := newMemStore()
	r := New(m)
	ctx := context.Background()

	// both name variants appear on the same case and role: after the merge
	// the canonical party must hold exactly one link for it
	c := m.addCase("DR0100", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), model.SourceDisputes, nil)
	resolveSides(t, r, c, "A Tenant", "Acme Property Ltd")

	c.RespondentName = "Acme Property Limited"
	require.NoError(t, r.ResolveCase(ctx, c))

	result, err := r.Merge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.PartiesRemoved)
	assert.Equal(t, 0, result.LinksRepointed)

	canonical := m.partyByName(t, "acme property ltd")
	links, err := m.ListPartyCaseLinks(ctx, canonical.ID)
	require.NoError(t, err)
	assert.Len(t, links, 1)
	assert.Equal(t, 1, canonical.TotalCases)
}
