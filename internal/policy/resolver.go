// Package policy resolves the effective activity-tracking policy for a
// repository from the layered configuration.
package policy

import (
	"github.com/spiffcs/reponews/config"
	"github.com/spiffcs/reponews/internal/model"
)

// Resolve computes the effective policy for one repository. Each key is
// resolved independently: the highest-precedence layer that sets it wins
// (exact repo, then owner wildcard, then affiliated defaults for affiliated
// repos, then global), and keys no layer sets take the built-in default.
//
// Implemented as a fold: start from the defaults and apply the layers lowest
// precedence first, overriding only the keys each layer explicitly sets.
func Resolve(cfg *config.Config, owner, name string, affiliated bool) model.Policy {
	p := model.DefaultPolicy()
	for _, layer := range cfg.Layers(owner, name, affiliated) {
		apply(&p, layer)
	}
	return p
}

func apply(p *model.Policy, o *config.PolicyOverrides) {
	if o.Issues != nil {
		p.Issues = *o.Issues
	}
	if o.PullRequests != nil {
		p.PullRequests = *o.PullRequests
	}
	if o.Discussions != nil {
		p.Discussions = *o.Discussions
	}
	if o.Releases != nil {
		p.Releases = *o.Releases
	}
	if o.Prereleases != nil {
		p.Prereleases = *o.Prereleases
	}
	if o.Drafts != nil {
		p.Drafts = *o.Drafts
	}
	if o.Tags != nil {
		p.Tags = *o.Tags
	}
	if o.ReleasedTags != nil {
		p.ReleasedTags = *o.ReleasedTags
	}
	if o.Stars != nil {
		p.Stars = *o.Stars
	}
	if o.Forks != nil {
		p.Forks = *o.Forks
	}
	if o.MyActivity != nil {
		p.MyActivity = *o.MyActivity
	}
}
