package hooks

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/cognaterra/better-drinking-bird/internal/gitctx"
	"github.com/cognaterra/better-drinking-bird/internal/safety"
)

var errNoBranch = errors.New("no branch checked out")

// gitHelper reads the checked-out branch from on-disk git metadata.
type gitHelper struct {
	resolver *gitctx.Resolver
}

// NewGitHelper creates a BranchResolver backed by gitctx.
func NewGitHelper(logger logrus.FieldLogger) safety.BranchResolver {
	return &gitHelper{resolver: gitctx.NewResolver(logger)}
}

// CurrentBranch returns the branch checked out in dir.
func (g *gitHelper) CurrentBranch(dir string) (string, error) {
	ctx, err := g.resolver.Resolve(dir, "")
	if err != nil {
		return "", err
	}
	if ctx.Branch == "" {
		return "", errNoBranch
	}
	return ctx.Branch, nil
}
