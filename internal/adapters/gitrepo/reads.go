package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"plansync/internal/domain"
	"plansync/internal/ports"
)

// open returns a fresh go-git handle so reads observe commits made by
// the git CLI since the last call.
func (r *Repository) open() (*gogit.Repository, error) {
	repo, err := gogit.PlainOpen(r.git.dir)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", r.git.dir, err)
	}
	return repo, nil
}

func resolveCommit(repo *gogit.Repository, ref string) (*object.Commit, error) {
	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", ref, err)
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", short(hash.String()), err)
	}
	return commit, nil
}

// fileAt returns the content of p in commit; a missing file is empty
func fileAt(commit *object.Commit, p string) ([]byte, error) {
	file, err := commit.File(p)
	if errors.Is(err, object.ErrFileNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s at %s: %w", p, short(commit.Hash.String()), err)
	}
	content, err := file.Contents()
	if err != nil {
		return nil, fmt.Errorf("read %s at %s: %w", p, short(commit.Hash.String()), err)
	}
	return []byte(content), nil
}

// BranchExists implements ports.PlanRepository
func (r *Repository) BranchExists(ctx context.Context, branch string) (bool, error) {
	repo, err := r.open()
	if err != nil {
		return false, err
	}
	_, err = repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("look up %s: %w", branch, err)
	}
	return true, nil
}

// Head implements ports.PlanRepository
func (r *Repository) Head(ctx context.Context, branch string) (string, error) {
	repo, err := r.open()
	if err != nil {
		return "", err
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", &domain.RepositoryStateError{Condition: domain.ConditionBranchMissing, Branch: branch}
	}
	if err != nil {
		return "", fmt.Errorf("look up %s: %w", branch, err)
	}
	return ref.Hash().String(), nil
}

// ReadDocument implements ports.PlanRepository. An empty ref reads the
// copy in the working tree, including any conflict markers.
func (r *Repository) ReadDocument(ctx context.Context, target domain.Target, ref string) ([]byte, error) {
	docPath := r.DocumentPath(target)
	if ref == "" {
		content, err := os.ReadFile(filepath.Join(r.git.dir, filepath.FromSlash(docPath)))
		if err != nil {
			return nil, fmt.Errorf("read working copy of %s: %w", docPath, err)
		}
		return content, nil
	}

	repo, err := r.open()
	if err != nil {
		return nil, err
	}
	commit, err := resolveCommit(repo, ref)
	if err != nil {
		return nil, err
	}
	return fileAt(commit, docPath)
}

// Diff implements ports.PlanRepository. The patch covers only the plan
// document of target.
func (r *Repository) Diff(ctx context.Context, target domain.Target, baseRef, headRef string) (ports.RawDiff, error) {
	repo, err := r.open()
	if err != nil {
		return ports.RawDiff{}, err
	}
	base, err := resolveCommit(repo, baseRef)
	if err != nil {
		return ports.RawDiff{}, err
	}
	head, err := resolveCommit(repo, headRef)
	if err != nil {
		return ports.RawDiff{}, err
	}

	docPath := r.DocumentPath(target)
	diff := ports.RawDiff{BaseRef: base.Hash.String(), HeadRef: head.Hash.String()}
	if diff.BaseContent, err = fileAt(base, docPath); err != nil {
		return ports.RawDiff{}, err
	}
	if diff.HeadContent, err = fileAt(head, docPath); err != nil {
		return ports.RawDiff{}, err
	}
	if diff.IsEmpty() {
		return diff, nil
	}

	baseTree, err := base.Tree()
	if err != nil {
		return ports.RawDiff{}, fmt.Errorf("tree of %s: %w", short(diff.BaseRef), err)
	}
	headTree, err := head.Tree()
	if err != nil {
		return ports.RawDiff{}, fmt.Errorf("tree of %s: %w", short(diff.HeadRef), err)
	}
	changes, err := baseTree.DiffContext(ctx, headTree)
	if err != nil {
		return ports.RawDiff{}, fmt.Errorf("compute changes: %w", err)
	}

	var filtered object.Changes
	for _, change := range changes {
		if change.From.Name == docPath || change.To.Name == docPath {
			filtered = append(filtered, change)
		}
	}
	patch, err := filtered.PatchContext(ctx)
	if err != nil {
		return ports.RawDiff{}, fmt.Errorf("generate patch: %w", err)
	}
	diff.Patch = patch.String()
	return diff, nil
}

// WorkingCommits implements ports.PlanRepository. It walks first
// parents from the working tip until it reaches a commit contained in
// the tracking branch and returns the commits that changed the
// document, oldest first.
func (r *Repository) WorkingCommits(ctx context.Context, target domain.Target) ([]ports.CommitInfo, error) {
	repo, err := r.open()
	if err != nil {
		return nil, err
	}
	tracking, err := resolveCommit(repo, plumbing.NewBranchReferenceName(r.TrackingBranch(target)).String())
	if err != nil {
		return nil, err
	}
	working, err := resolveCommit(repo, plumbing.NewBranchReferenceName(r.WorkingBranch(target)).String())
	if err != nil {
		return nil, err
	}

	upstream := make(map[plumbing.Hash]bool)
	iter, err := repo.Log(&gogit.LogOptions{From: tracking.Hash})
	if err != nil {
		return nil, fmt.Errorf("log tracking: %w", err)
	}
	err = iter.ForEach(func(c *object.Commit) error {
		upstream[c.Hash] = true
		return ctx.Err()
	})
	iter.Close()
	if err != nil {
		return nil, fmt.Errorf("walk tracking history: %w", err)
	}

	docPath := r.DocumentPath(target)
	var commits []ports.CommitInfo
	current := working
	for current != nil && !upstream[current.Hash] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var parent *object.Commit
		if current.NumParents() > 0 {
			if parent, err = current.Parent(0); err != nil {
				return nil, fmt.Errorf("parent of %s: %w", short(current.Hash.String()), err)
			}
		}

		after, err := fileAt(current, docPath)
		if err != nil {
			return nil, err
		}
		var before []byte
		if parent != nil {
			if before, err = fileAt(parent, docPath); err != nil {
				return nil, err
			}
		}

		if string(before) != string(after) {
			commits = append(commits, ports.CommitInfo{
				Hash:        current.Hash.String(),
				Message:     current.Message,
				AuthoredAt:  current.Author.When,
				CommittedAt: current.Committer.When,
				Engine:      IsEngineCommit(current.Message),
				Before:      before,
				After:       after,
			})
		}
		current = parent
	}

	slices.Reverse(commits)
	return commits, nil
}
