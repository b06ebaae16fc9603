package main

import (
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/pflag"
)

// Options are the command line settings of a run.
type Options struct {
	// --rules: required, the yaml file declaring repositories and match rules.
	rulesFile string

	// --identity-map / --identity-domain: svn login to git identity mapping.
	identityMap    string
	identityDomain string

	// --out-dir: where repositories (or dump files) are created.
	outDir string

	// --create-dump: write <out-dir>/<repo>.fi instead of running the import tool.
	createDump bool

	// --dry-run: route and frame everything, write nothing.
	dryRun bool

	fastImportCmd     string
	fastImportTimeout time.Duration

	// --report: optional yaml report of the run.
	report string

	logLevel string

	// --queue: revisions buffered per repository before the router blocks.
	queue int
}

func (o *Options) bind(flags *pflag.FlagSet) {
	flags.StringVar(&o.rulesFile, "rules", "rules.yml", "path to rules file")
	flags.StringVar(&o.identityMap, "identity-map", "", "file mapping svn logins to git identities")
	flags.StringVar(&o.identityDomain, "identity-domain", "localhost", "email domain for logins missing from the identity map")
	flags.StringVar(&o.outDir, "out-dir", ".", "directory to create repositories or dump files in")
	flags.BoolVar(&o.createDump, "create-dump", false, "write fast-import streams to <out-dir>/<repository>.fi")
	flags.BoolVar(&o.dryRun, "dry-run", false, "process the dump without writing anything")
	flags.StringVar(&o.fastImportCmd, "fast-import-cmd", "git fast-import", "import command run in each repository")
	flags.DurationVar(&o.fastImportTimeout, "fast-import-timeout", 0, "maximum wait for the import command to exit (0 waits forever)")
	flags.StringVar(&o.report, "report", "", "write a yaml report to this file")
	flags.StringVar(&o.logLevel, "log-level", LogLevelInfo, "logging level: debug, info or none")
	flags.IntVar(&o.queue, "queue", runtime.NumCPU()*4, "revisions queued per repository")
}

func (o *Options) validate() error {
	if o.rulesFile == "" {
		return fmt.Errorf("missing --rules filename")
	}
	if o.createDump && o.dryRun {
		return fmt.Errorf("--create-dump and --dry-run are mutually exclusive")
	}
	if o.fastImportCmd == "" {
		return fmt.Errorf("--fast-import-cmd cannot be empty")
	}
	if o.fastImportTimeout < 0 {
		return fmt.Errorf("--fast-import-timeout cannot be negative")
	}
	if o.queue < 1 {
		return fmt.Errorf("--queue must be at least 1")
	}
	return nil
}
