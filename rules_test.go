package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kfsone/svn-fast-export/fastimport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRules = `
repositories:
  - name: project
    branches:
      - name: master
      - name: stable
        from: refs/heads/master
  - name: tools
    branches:
      - name: master
match:
  - path: /project/trunk
    repository: project
    branch: master
  - path: /project/branches/stable
    repository: project
    branch: stable
  - path: /project/trunk/tools
    repository: tools
    branch: master
    prefix: src
  - path: /project/tags
    action: ignore
`

func TestRulesLookup(t *testing.T) {
	rules, err := ParseRules([]byte(sampleRules))
	require.NoError(t, err)
	require.Len(t, rules.Repositories, 2)

	m := rules.Lookup("project/trunk/main.c", 1)
	require.NotNil(t, m)
	assert.Equal(t, "project", m.Repository)
	assert.Equal(t, "master", m.Branch)
	assert.Equal(t, ActionExport, m.Action)
	assert.Equal(t, "main.c", m.Destination("project/trunk/main.c"))
	assert.Equal(t, "", m.Destination("project/trunk"))
	assert.Equal(t, "/project/trunk/", m.SourceRef())

	// The longest matching path wins regardless of order.
	m = rules.Lookup("project/trunk/tools/build.sh", 1)
	require.NotNil(t, m)
	assert.Equal(t, "tools", m.Repository)
	assert.Equal(t, "src/build.sh", m.Destination("project/trunk/tools/build.sh"))
	assert.Equal(t, "src", m.Destination("project/trunk/tools"))

	m = rules.Lookup("project/tags/v1/main.c", 1)
	require.NotNil(t, m)
	assert.Equal(t, ActionIgnore, m.Action)

	assert.Nil(t, rules.Lookup("project/trunkated/x", 1))
	assert.Nil(t, rules.Lookup("elsewhere", 1))
}

func TestRulesRevisionRange(t *testing.T) {
	rules, err := ParseRules([]byte(`
repositories:
  - name: r
    branches:
      - name: old
      - name: new
match:
  - path: /trunk
    repository: r
    branch: old
    max-revision: 9
  - path: /trunk
    repository: r
    branch: new
    min-revision: 10
`))
	require.NoError(t, err)
	assert.Equal(t, "old", rules.Lookup("trunk/a", 9).Branch)
	assert.Equal(t, "new", rules.Lookup("trunk/a", 10).Branch)
}

func TestRulesBranchSpecs(t *testing.T) {
	rules, err := ParseRules([]byte(sampleRules))
	require.NoError(t, err)
	assert.Equal(t, []fastimport.BranchSpec{
		{Name: "master"},
		{Name: "stable", From: "refs/heads/master"},
	}, rules.Repositories[0].BranchSpecs())
}

func TestRulesValidation(t *testing.T) {
	cases := map[string]string{
		"no repositories": `match: []`,
		"unnamed repository": `
repositories:
  - branches: [{name: master}]`,
		"duplicate repository": `
repositories:
  - name: a
  - name: a`,
		"duplicate branch": `
repositories:
  - name: a
    branches: [{name: master}, {name: master}]`,
		"unknown repository": `
repositories:
  - name: a
    branches: [{name: master}]
match:
  - path: /trunk
    repository: b
    branch: master`,
		"unknown action": `
repositories:
  - name: a
    branches: [{name: master}]
match:
  - path: /trunk
    action: rename`,
		"not yaml": `repositories: [`,
	}
	for name, text := range cases {
		_, err := ParseRules([]byte(text))
		assert.Error(t, err, name)
	}

	_, err := ParseRules([]byte(`
repositories:
  - name: a
    branches: [{name: master}]
match:
  - path: /trunk
    repository: a
    branch: develop`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fastimport.ErrUnknownBranch))
}

func TestNewRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRules), 0600))

	rules, err := NewRules(path)
	require.NoError(t, err)
	assert.Equal(t, path, rules.Filename)

	_, err = NewRules(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
