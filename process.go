package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/kfsone/svn-fast-export/fastimport"
	svn "github.com/kfsone/svn-fast-export/lib"
	"go.uber.org/zap"
)

// symlinkPrefix marks the text of an svn:special file holding a link target.
var symlinkPrefix = []byte("link ")

type fileAdd struct {
	path    string
	mode    fastimport.Mode
	content []byte
}

// ChangeSet is everything one revision does to one branch of one
// repository, applied as a single transaction.
type ChangeSet struct {
	Repository string
	Branch     string
	SourceRef  string
	Revision   int
	Author     []byte
	DateTime   uint
	Log        []byte
	Deletions  []string
	Files      []fileAdd
}

// Router splits revisions into change-sets according to the rules.
type Router struct {
	rules *Rules
	ids   *Identities
	log   *zap.Logger
	modes map[string]fastimport.Mode // by svn path
}

func NewRouter(rules *Rules, ids *Identities, log *zap.Logger) *Router {
	return &Router{rules: rules, ids: ids, log: log, modes: make(map[string]fastimport.Mode)}
}

// Route returns the change-sets of a revision grouped by repository, in the
// order their first node appeared.
func (rt *Router) Route(rev *svn.Revision) (map[string][]*ChangeSet, error) {
	when, err := rev.Date()
	if err != nil {
		return nil, err
	}
	var datetime uint
	if when.Unix() > 0 {
		datetime = uint(when.Unix())
	}
	author := []byte(rt.ids.Lookup(rev.Author()))

	sets := make(map[string][]*ChangeSet)
	index := make(map[string]*ChangeSet)
	changeSetFor := func(match *MatchRule) *ChangeSet {
		key := match.Repository + "\x00" + match.Branch
		if set, ok := index[key]; ok {
			return set
		}
		set := &ChangeSet{
			Repository: match.Repository,
			Branch:     match.Branch,
			SourceRef:  match.SourceRef(),
			Revision:   rev.Number,
			Author:     author,
			DateTime:   datetime,
			Log:        rev.Log(),
		}
		index[key] = set
		sets[match.Repository] = append(sets[match.Repository], set)
		return set
	}

	for _, node := range rev.Nodes {
		match := rt.rules.Lookup(node.Path, rev.Number)
		if match == nil {
			rt.log.Debug("unmatched path", zap.Int("revision", rev.Number), zap.String("node", node.String()))
			rt.forget(node)
			continue
		}
		if match.Action == ActionIgnore {
			rt.forget(node)
			continue
		}
		rt.routeNode(rev.Number, node, match, changeSetFor(match))
	}

	return sets, nil
}

func (rt *Router) routeNode(revision int, node *svn.Node, match *MatchRule, set *ChangeSet) {
	path := match.Destination(node.Path)
	logger := rt.log.With(zap.Int("revision", revision), zap.String("node", node.String()))

	if node.Action == svn.NodeActionDelete {
		rt.forget(node)
		if path == "" {
			logger.Warn("deleting a branch root is not supported; skipped")
			return
		}
		set.Deletions = append(set.Deletions, path)
		return
	}

	if node.Kind == svn.NodeKindDir {
		if node.Copied() && path != "" {
			logger.Warn("directory copy below a branch root is not expanded", zap.String("from", node.FromPath), zap.Int("from-rev", node.FromRev))
		}
		if node.Action == svn.NodeActionReplace && path != "" {
			set.Deletions = append(set.Deletions, path)
		}
		return
	}

	mode := rt.updateMode(node)
	if !node.HasText {
		if node.Copied() {
			logger.Warn("copied file has no text in the dump; skipped", zap.String("from", node.FromPath))
		} else if node.Properties != nil {
			logger.Debug("property-only change; content unchanged")
		}
		return
	}
	if path == "" {
		logger.Warn("file maps onto a branch root; skipped")
		return
	}

	content := node.Text
	if mode == fastimport.ModeSymlink {
		content = bytes.TrimPrefix(content, symlinkPrefix)
	}
	set.Files = append(set.Files, fileAdd{path: path, mode: mode, content: content})
}

// updateMode applies the node's svn:executable and svn:special properties
// to the remembered mode of its path.
func (rt *Router) updateMode(node *svn.Node) fastimport.Mode {
	key := strings.Trim(node.Path, "/")
	mode, known := rt.modes[key]
	if node.Action == svn.NodeActionReplace {
		known = false
	}
	if !known || (node.Properties != nil && !node.PropDelta) {
		mode = fastimport.ModeFile
	}
	if !known && node.Copied() && node.Properties == nil {
		if inherited, ok := rt.modes[strings.Trim(node.FromPath, "/")]; ok {
			mode = inherited
		}
	}

	props := node.Properties
	switch {
	case props.Has(svn.PropSpecial):
		mode = fastimport.ModeSymlink
	case props.Has(svn.PropExecutable):
		mode = fastimport.ModeExecutable
	case props.Removes(svn.PropSpecial) || props.Removes(svn.PropExecutable):
		mode = fastimport.ModeFile
	}

	rt.modes[key] = mode
	return mode
}

func (rt *Router) forget(node *svn.Node) {
	if node.Action != svn.NodeActionDelete && node.Action != svn.NodeActionReplace {
		return
	}
	for path := range rt.modes {
		if svn.MatchPathPrefix(path, node.Path) {
			delete(rt.modes, path)
		}
	}
}

// applyChangeSets runs each change-set as one transaction. Change-sets for
// undeclared branches are logged and skipped; any other failure is fatal
// for the repository and is returned.
func applyChangeSets(ctx context.Context, repo *fastimport.Repository, sets []*ChangeSet, log *zap.Logger) error {
	for _, set := range sets {
		txn, err := repo.NewTransaction(ctx, set.Branch, set.SourceRef, set.Revision)
		if err != nil {
			if !fastimport.IsFatal(err) {
				log.Warn("change-set skipped", zap.Int("revision", set.Revision), zap.Error(err))
				continue
			}
			return err
		}

		txn.SetAuthor(set.Author)
		txn.SetDateTime(set.DateTime)
		txn.SetLog(set.Log)

		if err := fillTransaction(txn, set); err != nil {
			_ = txn.Abandon()
			return err
		}
		if err := txn.Commit(); err != nil {
			return err
		}
	}
	return nil
}

func fillTransaction(txn *fastimport.Transaction, set *ChangeSet) error {
	for _, path := range set.Deletions {
		if err := txn.DeleteFile(path); err != nil {
			return err
		}
	}
	for _, file := range set.Files {
		w, err := txn.AddFile(file.path, file.mode, int64(len(file.content)))
		if err != nil {
			return err
		}
		if _, err := w.Write(file.content); err != nil {
			return fmt.Errorf("%s: %w", file.path, err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("%s: %w", file.path, err)
		}
	}
	return nil
}
