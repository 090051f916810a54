package importer

import (
	"strings"

	"go-deskmigrate/internal/features/job"
	"go-deskmigrate/internal/features/profile"
	"go-deskmigrate/internal/features/source"
	"go-deskmigrate/internal/features/transform"
)

// JobContext carries the state of one running import: the job being
// updated, the profile that configured it, the open source, and the
// dependency caches that let later rows reference earlier entities
// without database lookups.
type JobContext struct {
	Job     *job.ImportJob
	Profile *profile.ImportProfile
	Reader  source.Reader

	// source agent/contact id -> destination id, filled as those
	// entities are imported and read when tickets reference them
	AgentIDs   map[string]string
	ContactIDs map[string]string

	// source contact id -> destination account id, so tickets inherit
	// their requester's account
	ContactAccounts map[string]string

	// account key (domain, mailbox or name) -> destination account id
	AccountIDs map[string]string

	// values already seen for fields under a "unique" validation rule,
	// keyed by destination_table.field
	SeenUnique map[string]map[string]bool

	// progress span of the phase currently running
	phaseStart float64
	phaseEnd   float64
}

func NewJobContext(j *job.ImportJob, p *profile.ImportProfile, r source.Reader) *JobContext {
	return &JobContext{
		Job:             j,
		Profile:         p,
		Reader:          r,
		AgentIDs:        make(map[string]string),
		ContactIDs:      make(map[string]string),
		ContactAccounts: make(map[string]string),
		AccountIDs:      make(map[string]string),
		SeenUnique:      make(map[string]map[string]bool),
	}
}

// EnterPhase moves the job into a named phase occupying the progress
// span [start, end]. Progress never moves backwards even if a phase is
// re-entered.
func (jc *JobContext) EnterPhase(name string, start, end float64) {
	jc.Job.CurrentPhase = name
	jc.phaseStart = start
	jc.phaseEnd = end
	jc.Job.AdvanceProgress(start)
}

// PhaseProgress advances progress within the current phase's span.
// done/total is clamped so an underestimated total cannot push the bar
// past the end of the phase.
func (jc *JobContext) PhaseProgress(done, total int) {
	if total <= 0 {
		return
	}
	frac := float64(done) / float64(total)
	if frac > 1 {
		frac = 1
	}
	jc.Job.AdvanceProgress(jc.phaseStart + frac*(jc.phaseEnd-jc.phaseStart))
}

// MarkUnique records a value for a unique-validated field and reports
// whether it was already seen during this run
func (jc *JobContext) MarkUnique(table, field, value string) bool {
	key := table + "." + field
	if jc.SeenUnique[key] == nil {
		jc.SeenUnique[key] = make(map[string]bool)
	}
	norm := strings.ToLower(strings.TrimSpace(value))
	if jc.SeenUnique[key][norm] {
		return false
	}
	jc.SeenUnique[key][norm] = true
	return true
}

// DeterministicID derives the destination id for a source row of the
// given kind. The prefix keeps ids of different kinds disjoint even
// when source tables share numeric id ranges.
func DeterministicID(kind string, sourceID interface{}) string {
	return transform.DeterministicUUID(kind+"-", sourceID)
}
