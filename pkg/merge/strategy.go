package merge

import (
	"context"
	"fmt"
	"sort"

	"github.com/ardentforge/branchctl/pkg/diff"
	"github.com/ardentforge/branchctl/pkg/domain"
	"github.com/ardentforge/branchctl/pkg/errors"
)

const maxBranchesPerMerge = 8

// BranchChanges is the per-branch input a merge strategy consumes: the
// branch's identity, the filesystem path its session lives at, and the set
// of file changes it produced.
type BranchChanges struct {
	BranchID domain.BranchId
	Path     string
	Changes  []domain.FileChange
}

// FileSystem is the pluggable abstraction merge strategies use to read file
// contents for three-way merges. Implementations must never panic; read
// errors are surfaced as a file-level conflict by the caller.
type FileSystem interface {
	ReadFile(ctx context.Context, path string) (content string, ok bool, err error)
	FileExists(ctx context.Context, path string) bool
}

// Strategy is a named merge algorithm over a base path and a set of branch
// change sets.
type Strategy interface {
	Name() string
	Merge(ctx context.Context, basePath string, branches []BranchChanges) (domain.MergeResult, error)
}

// Registry maps strategy names to implementations. It is immutable after
// construction (spec §5: "the merge registry is immutable after
// construction").
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry builds a registry pre-populated with ours/theirs/union/three-way.
func NewRegistry(fs FileSystem) *Registry {
	r := &Registry{strategies: make(map[string]Strategy)}
	r.register(&oursStrategy{})
	r.register(&theirsStrategy{})
	r.register(&unionStrategy{})
	r.register(&threeWayStrategy{fs: fs, algo: diff.NewMyers()})
	return r
}

func (r *Registry) register(s Strategy) {
	r.strategies[s.Name()] = s
}

// Get looks up a strategy by name.
func (r *Registry) Get(name string) (Strategy, bool) {
	s, ok := r.strategies[name]
	return s, ok
}

// Has reports whether name is a registered strategy.
func (r *Registry) Has(name string) bool {
	_, ok := r.strategies[name]
	return ok
}

// Names returns the registered strategy names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.strategies))
	for n := range r.strategies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func checkBranchCount(branches []BranchChanges) error {
	if len(branches) > maxBranchesPerMerge {
		return errors.TooManyBranches(len(branches))
	}
	return nil
}

// conflicts reports whether two changes to the same path conflict: different
// paths never conflict; same path conflicts when either both are Modified,
// or at least one is Deleted, or both are Added.
func conflictingChanges(a, b domain.FileChange) bool {
	if a.Path != b.Path {
		return false
	}
	if a.Kind == domain.FileModified && b.Kind == domain.FileModified {
		return true
	}
	if a.Kind == domain.FileDeleted || b.Kind == domain.FileDeleted {
		return true
	}
	if a.Kind == domain.FileAdded && b.Kind == domain.FileAdded {
		return true
	}
	return false
}

func conflictKindFor(a, b domain.FileChange) domain.ConflictKind {
	switch {
	case a.Kind == domain.FileAdded && b.Kind == domain.FileAdded:
		return domain.ConflictAddAdd
	case a.Kind == domain.FileDeleted || b.Kind == domain.FileDeleted:
		return domain.ConflictDeleteModify
	default:
		return domain.ConflictContent
	}
}

// pathChange pairs a file change with the branch that produced it and the
// branch's session path, so the three-way strategy can read its content.
type pathChange struct {
	branchID domain.BranchId
	path     string
	change   domain.FileChange
}

func groupByPath(branches []BranchChanges) map[string][]pathChange {
	byPath := make(map[string][]pathChange)
	for _, b := range branches {
		for _, c := range b.Changes {
			byPath[c.Path] = append(byPath[c.Path], pathChange{branchID: b.BranchID, path: b.Path, change: c})
		}
	}
	return byPath
}

// --- ours -------------------------------------------------------------

type oursStrategy struct{}

func (oursStrategy) Name() string { return "ours" }

func (oursStrategy) Merge(_ context.Context, _ string, branches []BranchChanges) (domain.MergeResult, error) {
	if err := checkBranchCount(branches); err != nil {
		return domain.MergeResult{}, err
	}

	byPath := groupByPath(branches)
	var merged []domain.FileChange
	var conflicts []domain.Conflict

	for path, entries := range byPath {
		kept := entries[0]
		var conflictedWith []pathChange
		for _, other := range entries[1:] {
			if conflictingChanges(kept.change, other.change) {
				conflictedWith = append(conflictedWith, other)
			}
		}
		merged = append(merged, kept.change)
		if len(conflictedWith) > 0 {
			ids := []domain.BranchId{kept.branchID}
			for _, c := range conflictedWith {
				ids = append(ids, c.branchID)
			}
			conflicts = append(conflicts, domain.Conflict{
				Path:        path,
				BranchIDs:   ids,
				Description: fmt.Sprintf("ours: kept first change to %s, later conflicting changes discarded", path),
				Kind:        conflictKindFor(kept.change, conflictedWith[0].change),
			})
		}
	}

	return domain.MergeResult{MergedChanges: merged, Conflicts: conflicts, StrategyUsed: "ours"}, nil
}

// --- theirs -------------------------------------------------------------

type theirsStrategy struct{}

func (theirsStrategy) Name() string { return "theirs" }

func (theirsStrategy) Merge(_ context.Context, _ string, branches []BranchChanges) (domain.MergeResult, error) {
	if err := checkBranchCount(branches); err != nil {
		return domain.MergeResult{}, err
	}

	byPath := groupByPath(branches)
	var merged []domain.FileChange
	var conflicts []domain.Conflict

	for path, entries := range byPath {
		winner := entries[len(entries)-1]
		var conflictedWith []pathChange
		for _, prior := range entries[:len(entries)-1] {
			if conflictingChanges(prior.change, winner.change) {
				conflictedWith = append(conflictedWith, prior)
			}
		}
		merged = append(merged, winner.change)
		if len(conflictedWith) > 0 {
			ids := []domain.BranchId{winner.branchID}
			for _, c := range conflictedWith {
				ids = append(ids, c.branchID)
			}
			conflicts = append(conflicts, domain.Conflict{
				Path:        path,
				BranchIDs:   ids,
				Description: fmt.Sprintf("theirs: overwrote conflicting prior change to %s", path),
				Kind:        conflictKindFor(winner.change, conflictedWith[0].change),
			})
		}
	}

	return domain.MergeResult{MergedChanges: merged, Conflicts: conflicts, StrategyUsed: "theirs"}, nil
}

// --- union -------------------------------------------------------------

type unionStrategy struct{}

func (unionStrategy) Name() string { return "union" }

func (unionStrategy) Merge(_ context.Context, _ string, branches []BranchChanges) (domain.MergeResult, error) {
	return unionMerge(branches, "union")
}

func unionMerge(branches []BranchChanges, strategyName string) (domain.MergeResult, error) {
	if err := checkBranchCount(branches); err != nil {
		return domain.MergeResult{}, err
	}

	byPath := groupByPath(branches)
	var merged []domain.FileChange
	var conflicts []domain.Conflict

	for path, entries := range byPath {
		distinctBranches := map[domain.BranchId]bool{}
		for _, e := range entries {
			distinctBranches[e.branchID] = true
		}

		if len(distinctBranches) == 1 {
			merged = append(merged, entries[0].change)
			continue
		}

		anyConflict := false
		for i := 0; i < len(entries) && !anyConflict; i++ {
			for j := i + 1; j < len(entries); j++ {
				if conflictingChanges(entries[i].change, entries[j].change) {
					anyConflict = true
					break
				}
			}
		}

		if !anyConflict {
			merged = append(merged, entries[0].change)
			continue
		}

		ids := make([]domain.BranchId, 0, len(entries))
		for _, e := range entries {
			ids = append(ids, e.branchID)
		}
		conflicts = append(conflicts, domain.Conflict{
			Path:        path,
			BranchIDs:   ids,
			Description: fmt.Sprintf("%s: conflicting changes to %s across %d branches", strategyName, path, len(distinctBranches)),
			Kind:        conflictKindFor(entries[0].change, entries[1].change),
		})
	}

	return domain.MergeResult{MergedChanges: merged, Conflicts: conflicts, StrategyUsed: strategyName}, nil
}

// --- three-way -------------------------------------------------------------

type threeWayStrategy struct {
	fs   FileSystem
	algo diff.Algorithm
}

func (threeWayStrategy) Name() string { return "three-way" }

func (s threeWayStrategy) Merge(ctx context.Context, basePath string, branches []BranchChanges) (domain.MergeResult, error) {
	if err := checkBranchCount(branches); err != nil {
		return domain.MergeResult{}, err
	}

	byPath := groupByPath(branches)
	var merged []domain.FileChange
	var conflicts []domain.Conflict

	for path, entries := range byPath {
		distinctBranches := map[domain.BranchId][]pathChange{}
		for _, e := range entries {
			distinctBranches[e.branchID] = append(distinctBranches[e.branchID], e)
		}

		if len(distinctBranches) == 1 {
			merged = append(merged, entries[0].change)
			continue
		}

		if len(distinctBranches) != 2 {
			// Falls back to union semantics when more than two branches touch
			// the same path; three-way only applies to a single modify/modify pair.
			anyConflict := false
			for i := 0; i < len(entries) && !anyConflict; i++ {
				for j := i + 1; j < len(entries); j++ {
					if conflictingChanges(entries[i].change, entries[j].change) {
						anyConflict = true
					}
				}
			}
			if !anyConflict {
				merged = append(merged, entries[0].change)
				continue
			}
			ids := make([]domain.BranchId, 0, len(entries))
			for _, e := range entries {
				ids = append(ids, e.branchID)
			}
			conflicts = append(conflicts, domain.Conflict{
				Path: path, BranchIDs: ids,
				Description: fmt.Sprintf("three-way: %d branches touched %s, falling back to union semantics", len(distinctBranches), path),
				Kind:        conflictKindFor(entries[0].change, entries[1].change),
			})
			continue
		}

		// Exactly two branches.
		var left, right pathChange
		first := true
		for _, v := range distinctBranches {
			if first {
				left = v[0]
				first = false
			} else {
				right = v[0]
			}
		}

		if left.change.Kind != domain.FileModified || right.change.Kind != domain.FileModified {
			conflicts = append(conflicts, domain.Conflict{
				Path:      path,
				BranchIDs: []domain.BranchId{left.branchID, right.branchID},
				Description: fmt.Sprintf("three-way: %s is not a modify/modify pair (left=%s right=%s)",
					path, left.change.Kind, right.change.Kind),
				Kind: conflictKindFor(left.change, right.change),
			})
			continue
		}

		mergedChange, conflict, err := s.mergeModifiedFile(ctx, basePath, path, left, right)
		if err != nil {
			conflicts = append(conflicts, domain.Conflict{
				Path:        path,
				BranchIDs:   []domain.BranchId{left.branchID, right.branchID},
				Description: fmt.Sprintf("three-way: failed to read %s: %v", path, err),
				Kind:        domain.ConflictContent,
			})
			continue
		}
		if conflict != nil {
			conflicts = append(conflicts, *conflict)
			continue
		}
		merged = append(merged, mergedChange)
	}

	return domain.MergeResult{MergedChanges: merged, Conflicts: conflicts, StrategyUsed: "three-way"}, nil
}

// mergeModifiedFile reads base/left/right content through the FileSystem
// abstraction and runs the three-way merger. Read errors fall back to a
// file-level conflict rather than propagating, per spec §4.3.
func (s threeWayStrategy) mergeModifiedFile(ctx context.Context, basePath, path string, left, right pathChange) (domain.FileChange, *domain.Conflict, error) {
	baseContent, _, err := s.fs.ReadFile(ctx, joinPath(basePath, path))
	if err != nil {
		return domain.FileChange{}, nil, err
	}
	leftContent, _, err := s.fs.ReadFile(ctx, joinPath(left.path, path))
	if err != nil {
		return domain.FileChange{}, nil, err
	}
	rightContent, _, err := s.fs.ReadFile(ctx, joinPath(right.path, path))
	if err != nil {
		return domain.FileChange{}, nil, err
	}

	outcome := ThreeWayMerge(baseContent, leftContent, rightContent, s.algo)
	if outcome.IsMerged {
		return domain.FileChange{Kind: domain.FileModified, Path: path}, nil, nil
	}

	c := outcome.Conflicts[0]
	return domain.FileChange{}, &domain.Conflict{
		Path:         path,
		BranchIDs:    []domain.BranchId{left.branchID, right.branchID},
		Description:  fmt.Sprintf("three-way merge conflict in %s (%d conflict region(s))", path, len(outcome.Conflicts)),
		LineStart:    c.LineStart,
		LineEnd:      c.LineEnd,
		BaseContent:  joinLines(c.BaseLines),
		LeftContent:  joinLines(c.LeftLines),
		RightContent: joinLines(c.RightLines),
		Kind:         domain.ConflictContent,
	}, nil
}

func joinPath(root, path string) string {
	if root == "" {
		return path
	}
	return root + "/" + path
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}
