package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/kfsone/svn-fast-export/fastimport"
	svn "github.com/kfsone/svn-fast-export/lib"
	yml "gopkg.in/yaml.v3"
)

// BranchRule declares one destination branch and the ref it starts from.
type BranchRule struct {
	Name string `yaml:"name"`
	From string `yaml:"from,omitempty"`
}

// RepositoryRule declares one destination repository.
type RepositoryRule struct {
	Name     string       `yaml:"name"`
	Branches []BranchRule `yaml:"branches"`
}

const (
	ActionExport = "export"
	ActionIgnore = "ignore"
)

// MatchRule routes svn paths below Path to a repository branch, placing
// them under Prefix.
type MatchRule struct {
	Path        string `yaml:"path"`
	Repository  string `yaml:"repository,omitempty"`
	Branch      string `yaml:"branch,omitempty"`
	Prefix      string `yaml:"prefix,omitempty"`
	Action      string `yaml:"action,omitempty"`
	MinRevision int    `yaml:"min-revision,omitempty"`
	MaxRevision int    `yaml:"max-revision,omitempty"`
}

// Matches reports whether the rule applies to path at revision.
func (m *MatchRule) Matches(path string, revision int) bool {
	if m.MinRevision > 0 && revision < m.MinRevision {
		return false
	}
	if m.MaxRevision > 0 && revision > m.MaxRevision {
		return false
	}
	return svn.MatchPathPrefix(path, m.Path)
}

// Destination maps a matched svn path to its path in the destination.
func (m *MatchRule) Destination(path string) string {
	rest := svn.TrimPathPrefix(path, m.Path)
	prefix := strings.Trim(m.Prefix, "/")
	switch {
	case prefix == "":
		return rest
	case rest == "":
		return prefix
	}
	return prefix + "/" + rest
}

// SourceRef is the provenance recorded in each commit message.
func (m *MatchRule) SourceRef() string {
	path := strings.Trim(m.Path, "/")
	if path == "" {
		return "/"
	}
	return "/" + path + "/"
}

// Rules captures the yaml description of a ruleset.
type Rules struct {
	Filename     string           `yaml:"-"`
	Repositories []RepositoryRule `yaml:"repositories"`
	Match        []MatchRule      `yaml:"match"`
}

// NewRules returns a new Rules object populated from the yaml definition
// in a given file.
func NewRules(filename string) (*Rules, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}
	rules, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("rules: %s: %w", filename, err)
	}
	rules.Filename = filename
	return rules, nil
}

// ParseRules decodes and validates a yaml ruleset.
func ParseRules(data []byte) (*Rules, error) {
	rules := &Rules{}
	if err := yml.Unmarshal(data, rules); err != nil {
		return nil, err
	}
	if err := rules.validate(); err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *Rules) validate() error {
	if len(r.Repositories) == 0 {
		return fmt.Errorf("no repositories declared")
	}
	declared := make(map[string]map[string]bool, len(r.Repositories))
	for _, repo := range r.Repositories {
		if repo.Name == "" {
			return fmt.Errorf("repository without a name")
		}
		if _, dup := declared[repo.Name]; dup {
			return fmt.Errorf("repository %s declared twice", repo.Name)
		}
		branches := make(map[string]bool, len(repo.Branches))
		for _, branch := range repo.Branches {
			if branches[branch.Name] {
				return fmt.Errorf("repository %s: branch %s declared twice", repo.Name, branch.Name)
			}
			branches[branch.Name] = true
		}
		declared[repo.Name] = branches
	}

	for i := range r.Match {
		m := &r.Match[i]
		if m.Action == "" {
			m.Action = ActionExport
		}
		switch m.Action {
		case ActionIgnore:
			continue
		case ActionExport:
		default:
			return fmt.Errorf("match %s: unknown action %q", m.Path, m.Action)
		}
		branches, ok := declared[m.Repository]
		if !ok {
			return fmt.Errorf("match %s: unknown repository %q", m.Path, m.Repository)
		}
		if !branches[m.Branch] {
			return fmt.Errorf("match %s: %w: %s in %s", m.Path, fastimport.ErrUnknownBranch, m.Branch, m.Repository)
		}
	}

	return nil
}

// Lookup returns the rule with the longest path matching path at revision,
// or nil. Among rules of equal length the earliest wins.
func (r *Rules) Lookup(path string, revision int) *MatchRule {
	var best *MatchRule
	for i := range r.Match {
		m := &r.Match[i]
		if !m.Matches(path, revision) {
			continue
		}
		if best == nil || len(strings.Trim(m.Path, "/")) > len(strings.Trim(best.Path, "/")) {
			best = m
		}
	}
	return best
}

// BranchSpecs lists the branches of a repository rule for fastimport.New.
func (repo *RepositoryRule) BranchSpecs() []fastimport.BranchSpec {
	specs := make([]fastimport.BranchSpec, 0, len(repo.Branches))
	for _, branch := range repo.Branches {
		specs = append(specs, fastimport.BranchSpec{Name: branch.Name, From: branch.From})
	}
	return specs
}
