package memory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"plansync/internal/domain"
)

// Seed is the offline data set loaded into a Service. The file lists
// releases, each with its objectives and their epics:
//
//	releases:
//	  - team: core
//	    release: r1
//	    name: Release One
//	    objectives:
//	      - id: O-1
//	        name: Faster sync
//	        status: active
//	        epics:
//	          - name: Cache reads
//	            effort: 3
type Seed struct {
	Releases []SeedRelease `yaml:"releases"`
}

type SeedRelease struct {
	Team       string     `yaml:"team"`
	Release    string     `yaml:"release"`
	Name       string     `yaml:"name"`
	Objectives []SeedItem `yaml:"objectives"`
}

type SeedItem struct {
	ID     string     `yaml:"id"`
	Name   string     `yaml:"name"`
	Status string     `yaml:"status"`
	Effort *int       `yaml:"effort"`
	Owner  string     `yaml:"owner"`
	Epics  []SeedItem `yaml:"epics"`
}

// LoadSeed reads a seed file
func LoadSeed(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return Seed{}, fmt.Errorf("parse seed %s: %w", path, err)
	}
	for _, r := range seed.Releases {
		if err := (domain.Target{Team: r.Team, Release: r.Release}).Validate(); err != nil {
			return Seed{}, fmt.Errorf("seed %s: %w", path, err)
		}
	}
	return seed, nil
}

// Apply registers every release of seed and stores its items. Epics
// nested under an objective get it as parent.
func (s *Service) Apply(seed Seed) {
	for _, r := range seed.Releases {
		target := domain.Target{Team: r.Team, Release: r.Release}
		name := r.Name
		if name == "" {
			name = target.String()
		}
		s.AddRelease(target, name)

		for _, o := range r.Objectives {
			obj := s.Put(o.record(domain.KindObjective, target, ""))
			for _, e := range o.Epics {
				s.Put(e.record(domain.KindEpic, target, obj.ID))
			}
		}
	}
}

func (i SeedItem) record(kind domain.ItemKind, target domain.Target, parent string) domain.ItemRecord {
	return domain.ItemRecord{
		ID:       i.ID,
		Kind:     kind,
		Team:     target.Team,
		Release:  target.Release,
		Name:     i.Name,
		Status:   i.Status,
		Effort:   i.Effort,
		Owner:    i.Owner,
		ParentID: parent,
	}
}
