package cron

import (
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/nomis52/docscore/extract"
	"github.com/nomis52/docscore/server/config"
)

// ErrInvalidCronSpec is returned when the cron specification cannot be parsed.
var ErrInvalidCronSpec = errors.New("invalid cron spec")

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule parses a five field cron expression or a descriptor such as
// "@hourly".
func ParseSchedule(spec string) (cron.Schedule, error) {
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, errors.Join(ErrInvalidCronSpec, err)
	}
	return schedule, nil
}

// Job is a validated scheduled evaluation.
type Job struct {
	Name        string
	Schedule    string
	Candidate   extract.Handle
	Requirement extract.Handle
}

// ParseJobs validates the configured cron jobs and resolves their document
// references.
//
// Returns an error if:
//   - Any job name is repeated
//   - Any schedule is invalid
//   - Any document reference cannot be parsed
func ParseJobs(jobs []config.CronJob) ([]Job, error) {
	out := make([]Job, 0, len(jobs))
	seen := make(map[string]bool, len(jobs))

	for _, j := range jobs {
		if seen[j.Name] {
			return nil, fmt.Errorf("invalid cron job: duplicate name '%s'", j.Name)
		}
		seen[j.Name] = true

		if _, err := ParseSchedule(j.Schedule); err != nil {
			return nil, fmt.Errorf("invalid cron job '%s': %w", j.Name, err)
		}
		candidate, err := extract.ParseRef(j.Candidate)
		if err != nil {
			return nil, fmt.Errorf("invalid cron job '%s': candidate: %w", j.Name, err)
		}
		requirement, err := extract.ParseRef(j.Requirement)
		if err != nil {
			return nil, fmt.Errorf("invalid cron job '%s': requirement: %w", j.Name, err)
		}

		out = append(out, Job{
			Name:        j.Name,
			Schedule:    j.Schedule,
			Candidate:   candidate,
			Requirement: requirement,
		})
	}
	return out, nil
}
