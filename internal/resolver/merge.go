package resolver

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tribunal-cli/internal/model"
	"github.com/sells-group/tribunal-cli/internal/store"
)

// MergeResult summarizes one offline merge pass.
type MergeResult struct {
	GroupsMerged   int
	PartiesRemoved int
	LinksRepointed int
}

// Merge collapses parties whose names differ only in legal suffixes into one
// canonical entity: the member with the most cases keeps its row, every other
// member's case links are re-pointed onto it, and the emptied rows are
// deleted. Running Merge twice in a row is a no-op the second time.
func (r *Resolver) Merge(ctx context.Context) (*MergeResult, error) {
	parties, err := r.store.ListParties(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "resolver: list parties")
	}

	byKey := map[string][]model.Party{}
	for _, p := range parties {
		key := MergeKey(p.NormalizedName)
		byKey[key] = append(byKey[key], p)
	}

	// deterministic pass order
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		if len(byKey[k]) > 1 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	result := &MergeResult{}
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return result, eris.Wrap(err, "resolver: merge cancelled")
		}
		if err := r.mergeGroup(ctx, byKey[key], result); err != nil {
			return result, err
		}
		result.GroupsMerged++
	}

	// full aggregate sweep, not just the canonical rows: it also heals any
	// counters that went stale outside this pass
	if err := r.RecomputeAll(ctx); err != nil {
		return result, err
	}

	zap.L().Info("party merge pass finished",
		zap.Int("groups_merged", result.GroupsMerged),
		zap.Int("parties_removed", result.PartiesRemoved),
		zap.Int("links_repointed", result.LinksRepointed),
	)
	return result, nil
}

func (r *Resolver) mergeGroup(ctx context.Context, group []model.Party, result *MergeResult) error {
	// canonical member: most cases, oldest row on ties
	sort.Slice(group, func(i, j int) bool {
		if group[i].TotalCases != group[j].TotalCases {
			return group[i].TotalCases > group[j].TotalCases
		}
		return group[i].CreatedAt.Before(group[j].CreatedAt)
	})
	canonical := group[0]

	for _, loser := range group[1:] {
		links, err := r.store.ListPartyCaseLinks(ctx, loser.ID)
		if err != nil {
			return eris.Wrapf(err, "resolver: list links for %s", loser.NormalizedName)
		}
		for _, l := range links {
			err := r.store.RepointCaseParty(ctx, l.LinkID, canonical.ID)
			switch {
			case err == nil:
				result.LinksRepointed++
			case eris.Is(err, store.ErrConflict):
				// canonical already holds this case/role; drop the duplicate
				if err := r.store.DeleteCaseParty(ctx, l.LinkID); err != nil {
					return eris.Wrapf(err, "resolver: drop duplicate link %s", l.LinkID)
				}
			default:
				return eris.Wrapf(err, "resolver: repoint link %s", l.LinkID)
			}
		}
		if err := r.store.DeleteParty(ctx, loser.ID); err != nil {
			return eris.Wrapf(err, "resolver: delete merged party %s", loser.NormalizedName)
		}
		result.PartiesRemoved++
		zap.L().Debug("party merged",
			zap.String("into", canonical.NormalizedName),
			zap.String("removed", loser.NormalizedName),
		)
	}

	return nil
}
