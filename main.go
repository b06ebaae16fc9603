package main

// svn-fast-export converts a Subversion dump into one or more git
// repositories by feeding `git fast-import`.
//
// Use a rules file to declare the destination repositories and which svn
// paths go where:
//
//	repositories:
//	  - name: project
//	    branches:
//	      - name: master
//	      - name: stable
//	        from: refs/heads/master
//
//	match:
//	  - path: /project/trunk
//	    repository: project
//	    branch: master
//	  - path: /project/branches/stable
//	    repository: project
//	    branch: stable
//	  - path: /project/tags
//	    action: ignore
//
// Each repository gets its own import process and worker, so a slow
// repository only stalls itself.

import (
	"context"
	"fmt"
	"os"

	"github.com/docker/go-units"
	"github.com/kfsone/svn-fast-export/fastimport"
	svn "github.com/kfsone/svn-fast-export/lib"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

const (
	LogLevelInfo  = "info"
	LogLevelDebug = "debug"
	LogLevelNone  = "none"
)

// GetLogger returns a zap logger with the specified level.
func GetLogger(logLevel string) (*zap.Logger, error) {
	if logLevel == LogLevelNone {
		return zap.NewNop(), nil
	}
	zapConfig := zap.NewProductionConfig()
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, err
	}
	zapConfig.Level = zap.NewAtomicLevelAt(lvl)
	return zapConfig.Build()
}

var options Options

var rootCmd = &cobra.Command{
	Use:          "svn-fast-export [flags] DUMPFILE",
	Short:        "Convert a Subversion dump into git repositories",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := options.validate(); err != nil {
			return err
		}
		log, err := GetLogger(options.logLevel)
		if err != nil {
			return fmt.Errorf("--log-level: %w", err)
		}
		defer func() { _ = log.Sync() }()
		if !cmd.Flags().Changed("identity-map") && !cmd.Flags().Changed("identity-domain") {
			log.Warn("no identity map or domain given; authors will use @localhost addresses")
		}
		return run(context.Background(), &options, args[0], log)
	},
}

func init() {
	options.bind(rootCmd.Flags())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts *Options, dumpPath string, log *zap.Logger) error {
	session, err := NewSession(opts, log)
	if err != nil {
		return err
	}

	dump, err := svn.NewDumpFile(dumpPath)
	if err != nil {
		return err
	}
	defer dump.Close()

	log.Info("loading dump", zap.String("dump", dumpPath), zap.String("size", units.HumanSize(float64(len(dump.Data)))))
	if err := dump.LoadRevisions(); err != nil {
		return err
	}

	report, err := session.Export(ctx, dump)
	if opts.report != "" && report != nil {
		if rerr := writeReport(opts.report, report); rerr != nil {
			err = multierr.Append(err, fmt.Errorf("report: %w", rerr))
		}
	}
	return err
}

// Session is one conversion: the rules, the identity map and a repository
// per declared destination.
type Session struct {
	opts    *Options
	rules   *Rules
	ids     *Identities
	streams *StreamFactory
	log     *zap.Logger
}

func NewSession(opts *Options, log *zap.Logger) (*Session, error) {
	rules, err := NewRules(opts.rulesFile)
	if err != nil {
		return nil, err
	}
	ids, err := LoadIdentities(opts.identityMap, opts.identityDomain)
	if err != nil {
		return nil, err
	}
	streams, err := NewStreamFactory(opts, log)
	if err != nil {
		return nil, err
	}
	return &Session{opts: opts, rules: rules, ids: ids, streams: streams, log: log}, nil
}

type repoWorker struct {
	repo    *fastimport.Repository
	helper  *Helper[[]*ChangeSet]
	openErr error // Set when the stream could not be prepared.
}

// Export routes every revision of dump into the repositories and finalizes
// all of them. The error aggregates every repository that failed.
func (s *Session) Export(ctx context.Context, dump *svn.DumpFile) (*Report, error) {
	head := dump.GetHead()
	if head < 0 {
		head = 0
	}

	workers := make(map[string]*repoWorker, len(s.rules.Repositories))
	order := make([]*repoWorker, 0, len(s.rules.Repositories))
	for i := range s.rules.Repositories {
		rule := &s.rules.Repositories[i]
		stream, openErr := s.streams.Open(rule.Name)
		if openErr != nil {
			s.log.Error("cannot prepare repository", zap.String("repository", rule.Name), zap.Error(openErr))
			stream = unavailableStream{err: openErr}
		}
		repo, err := fastimport.New(rule.Name, rule.BranchSpecs(), stream, fastimport.Options{
			MarkSeed: head,
			Logger:   s.log,
		})
		if err != nil {
			closeWorkers(order)
			return nil, err
		}
		worker := &repoWorker{repo: repo, openErr: openErr}
		logger := s.log.With(zap.String("repository", rule.Name))
		worker.helper = NewHelper(s.opts.queue, func(sets []*ChangeSet) error {
			return applyChangeSets(ctx, repo, sets, logger)
		})
		workers[rule.Name] = worker
		order = append(order, worker)
	}

	var routeErr error
	router := NewRouter(s.rules, s.ids, s.log)
	for _, rev := range dump.Revisions {
		sets, err := router.Route(rev)
		if err != nil {
			routeErr = err
			break
		}
		for name, list := range sets {
			workers[name].helper.Queue(list)
		}
	}
	for _, worker := range order {
		if err := worker.helper.CloseWait(); err != nil {
			s.log.Error("repository stopped", zap.String("repository", worker.repo.Name()), zap.Error(err))
		}
	}

	// Finalize concurrently; one repository's failure must not cut another
	// short, so errors are collected rather than returned to the group.
	errs := make([]error, len(order))
	var g errgroup.Group
	for i, worker := range order {
		i, repo := i, worker.repo
		g.Go(func() error {
			errs[i] = repo.Finalize(ctx)
			if errs[i] == nil && order[i].openErr != nil {
				errs[i] = fmt.Errorf("repository %s: %w: %s", repo.Name(), fastimport.ErrSpawnFailure, order[i].openErr)
			}
			return nil
		})
	}
	_ = g.Wait()

	report := NewReport(dump.Path, int64(len(dump.Data)), dump.GetHead(), len(dump.Revisions))
	err := routeErr
	for i, worker := range order {
		report.Add(worker.repo, errs[i])
		err = multierr.Append(err, errs[i])
	}
	if failed := report.Failed(); len(failed) > 0 {
		s.log.Error("export incomplete", zap.Strings("failed", failed))
	} else if err == nil {
		s.log.Info("export complete", zap.Int("repositories", len(order)), zap.Int("revisions", len(dump.Revisions)))
	}
	return report, err
}

func closeWorkers(workers []*repoWorker) {
	for _, worker := range workers {
		_ = worker.helper.CloseWait()
	}
}
