package units

import (
	"context"
	"errors"
	"log/slog"

	ggit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"git.home.luguber.info/inful/sitebuilder/internal/engine"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// GitRevision exposes the current HEAD of the repository containing the base
// directory as global metadata under "git" (commit, short, branch). Outside a
// repository, or on an unborn branch, the unit does nothing.
func GitRevision() engine.Unit {
	return engine.Func("git-revision", func(_ context.Context, _ engine.Files, p engine.Pipeline) error {
		repo, err := ggit.PlainOpenWithOptions(p.Directory(), &ggit.PlainOpenOptions{DetectDotGit: true})
		if err != nil {
			if errors.Is(err, ggit.ErrRepositoryNotExists) {
				slog.Debug("Not a git repository, skipping revision metadata", logfields.Path(p.Directory()))
				return nil
			}
			return err
		}
		ref, err := repo.Head()
		if err != nil {
			if errors.Is(err, plumbing.ErrReferenceNotFound) {
				return nil
			}
			return err
		}
		commit := ref.Hash().String()
		info := map[string]any{
			"commit": commit,
			"short":  commit[:7],
		}
		if ref.Name().IsBranch() {
			info["branch"] = ref.Name().Short()
		}
		p.Metadata()[KeyGit] = info
		return nil
	})
}
