package main

import (
	"os"
	"sort"

	"github.com/docker/go-units"
	"github.com/kfsone/svn-fast-export/fastimport"
	yml "gopkg.in/yaml.v3"
)

type RepositoryReport struct {
	Status   string           `yaml:"status"`
	Error    string           `yaml:"error,omitempty"`
	Size     string           `yaml:"size"`
	LastMark int              `yaml:"last-mark"`
	Stats    fastimport.Stats `yaml:"stats"`
}

// Report summarizes a run.
type Report struct {
	Dump         string                      `yaml:"dump"`
	DumpSize     string                      `yaml:"dump-size"`
	Head         int                         `yaml:"head"`
	Revisions    int                         `yaml:"revisions"`
	Repositories map[string]RepositoryReport `yaml:"repositories"`
}

func NewReport(dump string, size int64, head, revisions int) *Report {
	return &Report{
		Dump:         dump,
		DumpSize:     units.HumanSize(float64(size)),
		Head:         head,
		Revisions:    revisions,
		Repositories: make(map[string]RepositoryReport),
	}
}

// Add records the outcome of one repository.
func (r *Report) Add(repo *fastimport.Repository, err error) {
	stats := repo.Stats()
	entry := RepositoryReport{
		Status:   "ok",
		Size:     units.HumanSize(float64(stats.BlobBytes)),
		LastMark: int(repo.LastMark()),
		Stats:    stats,
	}
	if err != nil {
		entry.Status = "failed"
		entry.Error = err.Error()
	}
	r.Repositories[repo.Name()] = entry
}

// Failed lists the repositories that did not finish cleanly, sorted.
func (r *Report) Failed() []string {
	failed := make([]string, 0)
	for name, entry := range r.Repositories {
		if entry.Status != "ok" {
			failed = append(failed, name)
		}
	}
	sort.Strings(failed)
	return failed
}

func writeReport(filename string, report *Report) error {
	// Open the file for writing.
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	ymlenc := yml.NewEncoder(f)
	ymlenc.SetIndent(2)
	if err := ymlenc.Encode(report); err != nil {
		return err
	}
	if err := ymlenc.Close(); err != nil {
		return err
	}
	return f.Close()
}
