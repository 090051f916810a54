package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-deskmigrate/internal/config"
	"go-deskmigrate/internal/features/dedupe"
	"go-deskmigrate/internal/features/destination"
	"go-deskmigrate/internal/features/job"
	"go-deskmigrate/internal/features/lineage"
	"go-deskmigrate/internal/features/mapping"
	"go-deskmigrate/internal/features/profile"
	"go-deskmigrate/internal/features/source"
	"go-deskmigrate/internal/features/transform"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ProgressPublisher pushes job snapshots to live subscribers
type ProgressPublisher interface {
	Publish(jobID string, j *job.ImportJob)
}

type ImportService interface {
	StartImport(ctx context.Context, profileID string) (*job.ImportJob, error)
	GetJob(ctx context.Context, id string) (*job.ImportJob, error)
	ListJobs(ctx context.Context, profileID string, limit int64) ([]job.ImportJob, error)
	Cancel(ctx context.Context, id string) error
}

type ImportServiceImpl struct {
	profileRepo profile.ProfileRepository
	mappingRepo mapping.MappingRepository
	jobRepo     job.JobRepository
	lineageRepo lineage.LineageRepository
	destRepo    destination.DestinationRepository
	detector    *dedupe.Detector
	engine      *transform.Engine
	builder     *mapping.Builder
	cfg         *config.Config
	logger      *zap.Logger
	publisher   ProgressPublisher

	// swapped in tests
	openSource func(ctx context.Context, cfg source.Config) (source.Reader, error)
}

func NewImportService(
	profileRepo profile.ProfileRepository,
	mappingRepo mapping.MappingRepository,
	jobRepo job.JobRepository,
	lineageRepo lineage.LineageRepository,
	destRepo destination.DestinationRepository,
	cfg *config.Config,
	logger *zap.Logger,
	publisher ProgressPublisher,
) ImportService {
	return &ImportServiceImpl{
		profileRepo: profileRepo,
		mappingRepo: mappingRepo,
		jobRepo:     jobRepo,
		lineageRepo: lineageRepo,
		destRepo:    destRepo,
		detector:    dedupe.NewDetector(lineage.NewPriorSource(lineageRepo)),
		engine:      transform.NewEngine(),
		builder:     mapping.NewBuilder(),
		cfg:         cfg,
		logger:      logger,
		publisher:   publisher,
		openSource:  source.Open,
	}
}

// StartImport creates a pending job for the profile and launches its
// worker. One goroutine per job; rows within a job are sequential.
func (s *ImportServiceImpl) StartImport(ctx context.Context, profileID string) (*job.ImportJob, error) {
	p, err := s.profileRepo.GetByHex(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("profile not found: %w", err)
	}

	j := &job.ImportJob{
		ProfileID: p.ID,
		Status:    job.StatusPending,
	}
	if err := s.jobRepo.Create(ctx, j); err != nil {
		return nil, err
	}

	s.logger.Info("import job created",
		zap.String("job_id", j.ID.Hex()),
		zap.String("profile_id", profileID))

	go s.run(context.Background(), j.ID)
	return j, nil
}

func (s *ImportServiceImpl) GetJob(ctx context.Context, id string) (*job.ImportJob, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}
	return s.jobRepo.Get(ctx, objID)
}

func (s *ImportServiceImpl) ListJobs(ctx context.Context, profileID string, limit int64) ([]job.ImportJob, error) {
	var pid *primitive.ObjectID
	if profileID != "" {
		objID, err := primitive.ObjectIDFromHex(profileID)
		if err != nil {
			return nil, err
		}
		pid = &objID
	}
	return s.jobRepo.List(ctx, pid, limit)
}

// Cancel flags the job; the worker notices between rows and stops
func (s *ImportServiceImpl) Cancel(ctx context.Context, id string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	return s.jobRepo.RequestCancel(ctx, objID)
}

// run is the job worker. It owns the job document from running until a
// terminal status.
func (s *ImportServiceImpl) run(ctx context.Context, jobID primitive.ObjectID) {
	j, err := s.jobRepo.Get(ctx, jobID)
	if err != nil {
		s.logger.Error("job vanished before start", zap.String("job_id", jobID.Hex()), zap.Error(err))
		return
	}

	p, err := s.profileRepo.Get(ctx, j.ProfileID)
	if err != nil {
		_ = s.jobRepo.UpdateStatus(ctx, jobID, job.StatusPending, job.StatusFailed, "profile not found")
		return
	}

	if err := s.jobRepo.UpdateStatus(ctx, jobID, job.StatusPending, job.StatusRunning, ""); err != nil {
		s.logger.Warn("job not startable", zap.String("job_id", jobID.Hex()), zap.Error(err))
		return
	}
	j.Status = job.StatusRunning

	reader, err := s.openSource(ctx, p.SourceConfig(
		int(s.cfg.ConnectTimeout.Seconds()), int(s.cfg.FetchTimeout.Seconds())))
	if err != nil {
		s.finish(ctx, j, job.StatusFailed, err.Error())
		return
	}
	defer reader.Close()

	jc := NewJobContext(j, p, reader)
	jc.EnterPhase("connect", 0, 2)
	s.saveProgress(ctx, jc)

	var runErr error
	mappings, _ := s.mappingRepo.ListByProfile(ctx, p.ID.Hex(), true)
	if sqlc, ok := reader.(*source.SQLConnector); ok && len(mappings) > 0 {
		runErr = s.runMappings(ctx, jc, sqlc, mappings)
	} else {
		runErr = s.runEntities(ctx, jc)
	}

	if runErr == nil {
		jc.Job.AdvanceProgress(100)
	}
	s.saveProgress(ctx, jc)

	switch {
	case runErr == errCancelled:
		s.finish(ctx, j, job.StatusCancelled, "")
	case runErr != nil:
		s.finish(ctx, j, job.StatusFailed, runErr.Error())
	case j.Counters.Failed > 0:
		s.finish(ctx, j, job.StatusCompletedWithErrors, "")
	default:
		s.finish(ctx, j, job.StatusCompleted, "")
	}
}

// errCancelled is a sentinel flowing up from the row loop when the
// cancel flag was observed
var errCancelled = fmt.Errorf("cancelled")

func (s *ImportServiceImpl) finish(ctx context.Context, j *job.ImportJob, status job.JobStatus, reason string) {
	if err := s.jobRepo.UpdateStatus(ctx, j.ID, j.Status, status, reason); err != nil {
		s.logger.Error("failed to finalize job", zap.String("job_id", j.ID.Hex()), zap.Error(err))
		return
	}
	j.Status = status
	j.FailureReason = reason
	if s.publisher != nil {
		s.publisher.Publish(j.ID.Hex(), j)
	}

	s.logger.Info("import job finished",
		zap.String("job_id", j.ID.Hex()),
		zap.String("status", string(status)),
		zap.Int("processed", j.Counters.Processed),
		zap.Int("imported", j.Counters.Imported),
		zap.Int("updated", j.Counters.Updated),
		zap.Int("skipped", j.Counters.Skipped),
		zap.Int("failed", j.Counters.Failed))
}

func (s *ImportServiceImpl) saveProgress(ctx context.Context, jc *JobContext) {
	if err := s.jobRepo.SaveProgress(ctx, jc.Job); err != nil {
		s.logger.Warn("failed to save job progress", zap.String("job_id", jc.Job.ID.Hex()), zap.Error(err))
	}
	if s.publisher != nil {
		s.publisher.Publish(jc.Job.ID.Hex(), jc.Job)
	}
}

// cancelled polls the database flag. Called between rows, never inside
// a row, so a row is always fully imported or not at all.
func (s *ImportServiceImpl) cancelled(ctx context.Context, jc *JobContext) bool {
	flagged, err := s.jobRepo.CancelRequested(ctx, jc.Job.ID)
	if err != nil {
		return false
	}
	return flagged
}

func (s *ImportServiceImpl) recordFailure(jc *JobContext, sourceTable, sourceID string, err error) {
	jc.Job.Counters.Processed++
	jc.Job.Counters.Failed++
	jc.Job.RecordError(job.JobError{
		SourceTable: sourceTable,
		SourceID:    sourceID,
		Message:     err.Error(),
		Kind:        errorKind(err),
		OccurredAt:  time.Now(),
	})
}

// ---- entity pipeline ----

// runEntities imports the fixed desk model in dependency order: agents
// first, then contacts (which create accounts), then tickets with their
// comments and time entries.
func (s *ImportServiceImpl) runEntities(ctx context.Context, jc *JobContext) error {
	if jc.Profile.AgentStrategy != profile.AgentSkip {
		jc.EnterPhase("agents", 2, 12)
		if err := s.forEachPage(ctx, jc, "agents", s.importAgent); err != nil {
			return err
		}
	}

	jc.EnterPhase("contacts", 12, 35)
	if err := s.forEachPage(ctx, jc, "contacts", s.importContact); err != nil {
		return err
	}

	jc.EnterPhase("tickets", 35, 95)
	if err := s.forEachPage(ctx, jc, "tickets", s.importTicket); err != nil {
		return err
	}

	jc.EnterPhase("finalize", 95, 100)
	return nil
}

// forEachPage drives one resource through the paged reader, handling
// cancellation, per-row recoverable errors and progress.
func (s *ImportServiceImpl) forEachPage(ctx context.Context, jc *JobContext, resource string, handle func(context.Context, *JobContext, map[string]interface{}) (string, error)) error {
	perPage := s.cfg.SourceChunkSize
	if perPage <= 0 {
		perPage = 100
	}

	filters := dateFilters(jc.Profile)
	page := 1
	done := 0
	for {
		p, err := jc.Reader.FetchPage(ctx, resource, page, perPage, filters)
		if err != nil {
			return &SchemaError{Table: resource, Err: err}
		}
		if page == 1 && p.Total > 0 {
			jc.Job.TotalRecords += int(p.Total)
		}

		total := int(p.Total)
		for _, row := range p.Rows {
			if s.cancelled(ctx, jc) {
				return errCancelled
			}
			if jc.Profile.Limit > 0 && done >= jc.Profile.Limit {
				return nil
			}

			status, err := handle(ctx, jc, row)
			if err != nil {
				if !isRecoverable(err) {
					return err
				}
				s.recordFailure(jc, resource, rowID(row), err)
				if !jc.Profile.ContinueOnError {
					return fmt.Errorf("aborted at %s %s: %w", resource, rowID(row), err)
				}
			} else {
				s.bump(jc, status)
			}

			done++
			if total <= 0 {
				total = done + perPage
			}
			jc.PhaseProgress(done, total)
			s.saveProgress(ctx, jc)
		}

		if !p.HasMore {
			return nil
		}
		page++
	}
}

func (s *ImportServiceImpl) bump(jc *JobContext, status string) {
	jc.Job.Counters.Processed++
	switch status {
	case lineage.StatusImported:
		jc.Job.Counters.Imported++
	case lineage.StatusUpdated:
		jc.Job.Counters.Updated++
	default:
		jc.Job.Counters.Skipped++
	}
}

func (s *ImportServiceImpl) importAgent(ctx context.Context, jc *JobContext, row map[string]interface{}) (string, error) {
	sourceID := rowID(row)
	email := strValue(row, "email")
	if err := validateField("email", "required", email); err != nil {
		return "", err
	}
	if err := validateField("email", "email", email); err != nil {
		return "", err
	}

	if jc.Profile.AgentStrategy == profile.AgentMatchExisting {
		existing, err := s.destRepo.FindAgentByEmail(ctx, strings.ToLower(email))
		if err != nil {
			return "", err
		}
		if existing != nil {
			jc.AgentIDs[sourceID] = existing.ID
			return "skipped", nil
		}
	}

	out, err := s.engine.ApplyAll(row, defaultAgentRules)
	if err != nil {
		return "", &TransformationError{Field: "role", Err: err}
	}

	destID := DeterministicID("agent", sourceID)
	fields := map[string]interface{}{
		"name":      displayName(row),
		"email":     strings.ToLower(email),
		"role":      out["role"],
		"is_active": true,
	}

	status, err := s.importRecord(ctx, jc, "agents", destination.TableAgents, destID, sourceID, row, fields)
	if err != nil {
		return "", err
	}
	jc.AgentIDs[sourceID] = destID
	return status, nil
}

func (s *ImportServiceImpl) importContact(ctx context.Context, jc *JobContext, row map[string]interface{}) (string, error) {
	sourceID := rowID(row)
	email := strings.ToLower(strValue(row, "email"))
	if err := validateField("email", "required", email); err != nil {
		return "", err
	}
	if err := validateField("email", "email", email); err != nil {
		return "", err
	}

	accountID, err := s.resolveAccount(ctx, jc, row, email)
	if err != nil {
		return "", err
	}

	destID := DeterministicID("contact", sourceID)
	fields := map[string]interface{}{
		"account_id": accountID,
		"name":       displayName(row),
		"email":      email,
		"phone":      strValue(row, "phone"),
	}

	status, err := s.importRecord(ctx, jc, "contacts", destination.TableContacts, destID, sourceID, row, fields)
	if err != nil {
		return "", err
	}
	jc.ContactIDs[sourceID] = destID
	jc.ContactAccounts[sourceID] = accountID
	return status, nil
}

// materializeContact resolves a requester that did not appear in the
// contact listing, fetching the row by id from the source. A requester
// the source no longer has costs only the referencing row.
func (s *ImportServiceImpl) materializeContact(ctx context.Context, jc *JobContext, sourceID string) error {
	row, err := jc.Reader.FetchByID(ctx, "contacts", sourceID)
	if err != nil {
		if errors.Is(err, source.ErrNotFound) {
			return &ValidationError{Field: "requester_id", Reason: "contact " + sourceID + " not found in source"}
		}
		return err
	}
	status, err := s.importContact(ctx, jc, row)
	if err != nil {
		return err
	}
	s.bump(jc, status)
	return nil
}

func (s *ImportServiceImpl) importTicket(ctx context.Context, jc *JobContext, row map[string]interface{}) (string, error) {
	sourceID := rowID(row)
	subject := strValue(row, "subject")
	if err := validateField("subject", "required", subject); err != nil {
		return "", err
	}

	out, err := s.engine.ApplyAll(row, s.ticketRules(jc.Profile))
	if err != nil {
		return "", &TransformationError{Field: "status", Err: err}
	}

	requesterID := normalizeValue(row["requester_id"])
	responderID := normalizeValue(row["responder_id"])

	if requesterID != "" {
		if _, ok := jc.ContactIDs[requesterID]; !ok {
			if err := s.materializeContact(ctx, jc, requesterID); err != nil {
				return "", err
			}
		}
	}

	fields := map[string]interface{}{
		"subject":  subject,
		"body":     strValue(row, "description"),
		"status":   out["status"],
		"priority": out["priority"],
		"source":   out["source"],
	}
	if contactID, ok := jc.ContactIDs[requesterID]; ok {
		fields["contact_id"] = contactID
		fields["account_id"] = jc.ContactAccounts[requesterID]
	} else if jc.Profile.AccountStrategy == profile.AccountSingle {
		fields["account_id"] = jc.Profile.DefaultAccountID
	}
	if agentID, ok := jc.AgentIDs[responderID]; ok {
		fields["agent_id"] = agentID
	}
	if t := parseTime(row["created_at"]); t != nil {
		fields["source_created_at"] = *t
	}

	destID := DeterministicID("ticket", sourceID)
	status, err := s.importRecord(ctx, jc, "tickets", destination.TableTickets, destID, sourceID, row, fields)
	if err != nil {
		return "", err
	}

	// Children are scanned even when the ticket itself is unchanged: a
	// rerun may find new comments on an old ticket
	if err := s.importTicketChildren(ctx, jc, sourceID, destID); err != nil {
		return "", err
	}
	return status, nil
}

// importTicketChildren pulls comments and time entries for one ticket.
// Child failures are recorded but never fail the parent ticket.
func (s *ImportServiceImpl) importTicketChildren(ctx context.Context, jc *JobContext, ticketSourceID, ticketDestID string) error {
	comments, err := jc.Reader.FetchSubResource(ctx, "tickets", ticketSourceID, "comments")
	if err != nil {
		if !isRecoverable(err) {
			return err
		}
		s.recordFailure(jc, "comments", ticketSourceID, err)
		comments = nil
	}
	for _, row := range comments {
		sourceID := rowID(row)
		out, terr := s.engine.ApplyAll(map[string]interface{}{"type": normalizeValue(row["private"])}, defaultCommentRules)
		if terr != nil {
			s.recordFailure(jc, "comments", sourceID, &TransformationError{Field: "type", Err: terr})
			continue
		}

		fields := map[string]interface{}{
			"ticket_id": ticketDestID,
			"body":      strValue(row, "body"),
			"type":      out["type"],
		}
		if authorID, ok := jc.AgentIDs[normalizeValue(row["user_id"])]; ok {
			fields["author_id"] = authorID
		} else if contactID, ok := jc.ContactIDs[normalizeValue(row["user_id"])]; ok {
			fields["author_id"] = contactID
		}
		if t := parseTime(row["created_at"]); t != nil {
			fields["source_created_at"] = *t
		}

		destID := DeterministicID("comment", sourceID)
		status, cerr := s.importRecord(ctx, jc, "comments", destination.TableComments, destID, sourceID, row, fields)
		if cerr != nil {
			s.recordFailure(jc, "comments", sourceID, cerr)
			continue
		}
		s.bump(jc, status)
	}

	entries, err := jc.Reader.FetchSubResource(ctx, "tickets", ticketSourceID, "time_entries")
	if err != nil {
		if !isRecoverable(err) {
			return err
		}
		s.recordFailure(jc, "time_entries", ticketSourceID, err)
		entries = nil
	}
	for _, row := range entries {
		sourceID := rowID(row)
		fields := map[string]interface{}{
			"ticket_id": ticketDestID,
			"minutes":   intValue(row["time_spent"]),
			"billable":  normalizeValue(row["billable"]) == "true",
			"note":      strValue(row, "note"),
		}
		if agentID, ok := jc.AgentIDs[normalizeValue(row["agent_id"])]; ok {
			fields["agent_id"] = agentID
		}

		destID := DeterministicID("time_entry", sourceID)
		status, terr := s.importRecord(ctx, jc, "time_entries", destination.TableTimeEntries, destID, sourceID, row, fields)
		if terr != nil {
			s.recordFailure(jc, "time_entries", sourceID, terr)
			continue
		}
		s.bump(jc, status)
	}
	return nil
}

// ticketRules layers the profile's status overrides over the defaults
func (s *ImportServiceImpl) ticketRules(p *profile.ImportProfile) map[string]transform.Rule {
	if len(p.StatusMap) == 0 {
		return defaultTicketRules
	}
	rules := make(map[string]transform.Rule, len(defaultTicketRules))
	for k, v := range defaultTicketRules {
		rules[k] = v
	}
	status := rules["status"]
	status.Map = p.StatusMap
	rules["status"] = status
	return rules
}

// resolveAccount applies the profile's account strategy to one contact
// row and returns the destination account id, creating the account on
// first sight.
func (s *ImportServiceImpl) resolveAccount(ctx context.Context, jc *JobContext, row map[string]interface{}, email string) (string, error) {
	switch jc.Profile.AccountStrategy {
	case profile.AccountSingle:
		return jc.Profile.DefaultAccountID, nil

	case profile.AccountPerMailbox:
		mailbox := strValue(row, "mailbox")
		if mailbox == "" {
			mailbox = normalizeValue(row["mailbox_id"])
		}
		if mailbox == "" {
			return "", &ValidationError{Field: "mailbox", Reason: "row carries no mailbox for mailbox_per_account"}
		}
		return s.ensureAccount(ctx, jc, "mailbox:"+mailbox, mailbox, "")

	case profile.AccountDomainMappingStrict:
		domain := emailDomain(email)
		name, ok := jc.Profile.DomainMappings[domain]
		if !ok {
			return "", &ValidationError{Field: "email", Reason: fmt.Sprintf("domain %s has no account mapping", domain)}
		}
		return s.ensureAccount(ctx, jc, "domain:"+domain, name, domain)

	default: // domain_mapping: mapped name, then mailbox, then the domain itself
		domain := emailDomain(email)
		if name, ok := jc.Profile.DomainMappings[domain]; ok {
			return s.ensureAccount(ctx, jc, "domain:"+domain, name, domain)
		}
		if mailbox := strValue(row, "mailbox"); mailbox != "" {
			return s.ensureAccount(ctx, jc, "mailbox:"+mailbox, mailbox, "")
		}
		if domain == "" {
			return "", &ValidationError{Field: "email", Reason: "cannot derive an account without an email domain"}
		}
		return s.ensureAccount(ctx, jc, "domain:"+domain, domain, domain)
	}
}

// ensureAccount creates the account once per key and caches its id
func (s *ImportServiceImpl) ensureAccount(ctx context.Context, jc *JobContext, key, name, domain string) (string, error) {
	if id, ok := jc.AccountIDs[key]; ok {
		return id, nil
	}

	id := DeterministicID("account", key)
	fields := map[string]interface{}{"name": name}
	if domain != "" {
		fields["domain"] = domain
	}
	if _, err := s.destRepo.Upsert(ctx, destination.TableAccounts, id, fields); err != nil {
		return "", err
	}

	jc.AccountIDs[key] = id
	return id, nil
}

// ---- declarative mapping pipeline ----

// runMappings executes the profile's mapping documents in import order
// against a relational source. Each mapping gets an equal slice of the
// progress bar.
func (s *ImportServiceImpl) runMappings(ctx context.Context, jc *JobContext, sqlc *source.SQLConnector, mappings []mapping.Mapping) error {
	span := 90.0 / float64(len(mappings))
	for i := range mappings {
		m := &mappings[i]
		jc.EnterPhase("mapping:"+m.Name, 5+float64(i)*span, 5+float64(i+1)*span)

		if err := s.runMapping(ctx, jc, sqlc, m); err != nil {
			if !mappingSkippable(err, jc.Profile.ContinueOnError) {
				return err
			}
			s.recordFailure(jc, m.BaseTable, "", err)
			s.logger.Warn("mapping failed, skipping",
				zap.String("job_id", jc.Job.ID.Hex()),
				zap.String("mapping", m.Name),
				zap.Error(err))
		}
	}

	jc.EnterPhase("finalize", 95, 100)
	return nil
}

func (s *ImportServiceImpl) runMapping(ctx context.Context, jc *JobContext, sqlc *source.SQLConnector, m *mapping.Mapping) error {
	effective := *m
	if effective.Limit == 0 && jc.Profile.Limit > 0 {
		effective.Limit = jc.Profile.Limit
	}

	total, err := s.countMapping(ctx, sqlc, &effective)
	if err != nil {
		return &SchemaError{Table: m.BaseTable, Err: err}
	}
	if effective.Limit > 0 && total > effective.Limit {
		total = effective.Limit
	}
	jc.Job.TotalRecords += total

	stream, err := sqlc.StreamQuery(ctx, s.builder.Build(&effective), nil, s.cfg.SourceChunkSize)
	if err != nil {
		return &SchemaError{Table: m.BaseTable, Err: err}
	}
	defer stream.Close()

	done := 0
	for stream.Next() {
		if s.cancelled(ctx, jc) {
			return errCancelled
		}

		row := stream.Row()
		status, err := s.importMappedRow(ctx, jc, m, row)
		if err != nil {
			if !isRecoverable(err) {
				return err
			}
			s.recordFailure(jc, m.BaseTable, rowID(row), err)
			if !jc.Profile.ContinueOnError {
				return fmt.Errorf("aborted at %s %s: %w", m.BaseTable, rowID(row), err)
			}
		} else {
			s.bump(jc, status)
		}

		done++
		jc.PhaseProgress(done, total)
		s.saveProgress(ctx, jc)
	}
	if err := stream.Err(); err != nil {
		return &SchemaError{Table: m.BaseTable, Err: err}
	}
	return nil
}

func (s *ImportServiceImpl) countMapping(ctx context.Context, sqlc *source.SQLConnector, m *mapping.Mapping) (int, error) {
	stream, err := sqlc.StreamQuery(ctx, s.builder.BuildCount(m), nil, 1)
	if err != nil {
		return 0, err
	}
	defer stream.Close()

	if !stream.Next() {
		return 0, stream.Err()
	}
	for _, v := range stream.Row() {
		return intValue(v), nil
	}
	return 0, nil
}

// importMappedRow validates, transforms and lands one declaratively
// mapped row
func (s *ImportServiceImpl) importMappedRow(ctx context.Context, jc *JobContext, m *mapping.Mapping, row map[string]interface{}) (string, error) {
	for field, rules := range m.ValidationRules {
		for _, rule := range rules {
			if rule == "unique" {
				if !jc.MarkUnique(m.DestinationTable, field, normalizeValue(row[field])) {
					return "", &ValidationError{Field: field, Reason: "duplicate value within this run"}
				}
				continue
			}
			if err := validateField(field, rule, row[field]); err != nil {
				return "", err
			}
		}
	}

	fields := make(map[string]interface{}, len(m.FieldMappings))
	for destField, srcField := range m.FieldMappings {
		fields[destField] = row[srcField]
	}

	out, err := s.engine.ApplyAll(row, m.TransformationRules)
	if err != nil {
		return "", &TransformationError{Field: "transformation_rules", Err: err}
	}
	for destField, v := range out {
		fields[destField] = v
	}

	sourceID := rowID(row)
	destID := DeterministicID(m.DestinationTable, sourceID)
	return s.importRecord(ctx, jc, m.BaseTable, m.DestinationTable, destID, sourceID, row, fields)
}

// ---- shared landing logic ----

// importRecord is the idempotence core shared by both pipelines. The
// lineage ledger is consulted first: a known source row is skipped when
// unchanged and updated in place when changed. New rows go through
// duplicate detection and the profile's import mode policy.
func (s *ImportServiceImpl) importRecord(ctx context.Context, jc *JobContext, sourceTable, destTable, destID, sourceID string, row, fields map[string]interface{}) (string, error) {
	existing, err := s.lineageRepo.Find(ctx, jc.Profile.ID, sourceTable, sourceID)
	if err != nil {
		return "", err
	}

	if existing != nil {
		// Only mapped fields decide changed vs unchanged. A source
		// column nothing maps to must not flip the row to updated.
		current, err := s.destRepo.FindByID(ctx, destTable, existing.DestinationID)
		if err != nil {
			return "", err
		}
		if current != nil && fieldsUnchanged(current, fields) {
			return "skipped", nil
		}
		if err := s.destRepo.Update(ctx, destTable, existing.DestinationID, fields); err != nil {
			return "", err
		}
		if err := s.lineageRepo.MarkUpdated(ctx, existing.ID, row); err != nil {
			return "", err
		}
		return lineage.StatusUpdated, nil
	}

	result, err := s.detector.Detect(ctx, row, jc.Profile.ID.Hex(), destTable, jc.Profile.Dedupe)
	if err != nil {
		return "", err
	}

	mode := dedupe.ImportMode(jc.Profile.ImportMode)
	if mode == "" {
		mode = dedupe.ModeCreate
	}
	decision := dedupe.DecidePolicy(result, mode, dedupe.PolicyFlags{
		SkipDuplicates:   jc.Profile.SkipDuplicates,
		UpdateDuplicates: jc.Profile.UpdateDuplicates,
	})

	switch decision.Action {
	case dedupe.ActionSkip:
		return "skipped", nil

	case dedupe.ActionUpdate:
		if err := s.destRepo.Update(ctx, destTable, decision.Match.DestinationID, fields); err != nil {
			return "", err
		}
		if err := s.lineageRepo.Create(ctx, &lineage.ImportRecord{
			ProfileID:        jc.Profile.ID,
			SourceTable:      sourceTable,
			SourceID:         sourceID,
			DestinationTable: destTable,
			DestinationID:    decision.Match.DestinationID,
			ImportStatus:     lineage.StatusUpdated,
			SourceData:       row,
		}); err != nil {
			return "", err
		}
		return lineage.StatusUpdated, nil

	default:
		if _, err := s.destRepo.Upsert(ctx, destTable, destID, fields); err != nil {
			return "", err
		}
		if err := s.lineageRepo.Create(ctx, &lineage.ImportRecord{
			ProfileID:        jc.Profile.ID,
			SourceTable:      sourceTable,
			SourceID:         sourceID,
			DestinationTable: destTable,
			DestinationID:    destID,
			ImportStatus:     lineage.StatusImported,
			SourceData:       row,
		}); err != nil {
			return "", err
		}
		return lineage.StatusImported, nil
	}
}

// ---- row helpers ----

func rowID(row map[string]interface{}) string {
	return normalizeValue(row["id"])
}

func strValue(row map[string]interface{}, key string) string {
	if v, ok := row[key]; ok && v != nil {
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
	return ""
}

// displayName prefers an explicit name field, falling back to first and
// last name combined
func displayName(row map[string]interface{}) string {
	if name := strValue(row, "name"); name != "" {
		return name
	}
	parts := make([]string, 0, 2)
	if first := strValue(row, "first_name"); first != "" {
		parts = append(parts, first)
	}
	if last := strValue(row, "last_name"); last != "" {
		parts = append(parts, last)
	}
	return strings.Join(parts, " ")
}

func intValue(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		var parsed int
		fmt.Sscanf(n, "%d", &parsed)
		return parsed
	default:
		return 0
	}
}

func parseTime(v interface{}) *time.Time {
	switch t := v.(type) {
	case time.Time:
		return &t
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return &parsed
			}
		}
	}
	return nil
}

func dateFilters(p *profile.ImportProfile) map[string]interface{} {
	filters := make(map[string]interface{})
	if p.DateFrom != nil {
		filters["updated_since"] = p.DateFrom.Format(time.RFC3339)
	}
	if p.DateTo != nil {
		filters["updated_until"] = p.DateTo.Format(time.RFC3339)
	}
	if len(filters) == 0 {
		return nil
	}
	return filters
}
