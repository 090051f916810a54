package importer

import (
	"context"
	"fmt"
	"testing"
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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ---- in-memory fakes ----

type fakeProfileRepo struct {
	p *profile.ImportProfile
}

func (f *fakeProfileRepo) Create(ctx context.Context, p *profile.ImportProfile) error { return nil }
func (f *fakeProfileRepo) Get(ctx context.Context, id primitive.ObjectID) (*profile.ImportProfile, error) {
	if f.p == nil || f.p.ID != id {
		return nil, fmt.Errorf("profile not found")
	}
	return f.p, nil
}
func (f *fakeProfileRepo) GetByHex(ctx context.Context, id string) (*profile.ImportProfile, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}
	return f.Get(ctx, objID)
}
func (f *fakeProfileRepo) List(ctx context.Context) ([]profile.ImportProfile, error) { return nil, nil }
func (f *fakeProfileRepo) Update(ctx context.Context, id primitive.ObjectID, p *profile.ImportProfile) error {
	return nil
}
func (f *fakeProfileRepo) Delete(ctx context.Context, id primitive.ObjectID) error { return nil }

type fakeMappingRepo struct {
	mappings []mapping.Mapping
}

func (f *fakeMappingRepo) Create(ctx context.Context, m *mapping.Mapping) error { return nil }
func (f *fakeMappingRepo) Get(ctx context.Context, id string) (*mapping.Mapping, error) {
	return nil, fmt.Errorf("not found")
}
func (f *fakeMappingRepo) ListByProfile(ctx context.Context, profileID string, activeOnly bool) ([]mapping.Mapping, error) {
	return f.mappings, nil
}
func (f *fakeMappingRepo) Update(ctx context.Context, id string, m *mapping.Mapping) error {
	return nil
}
func (f *fakeMappingRepo) Delete(ctx context.Context, id string) error { return nil }

type fakeJobRepo struct {
	jobs        map[primitive.ObjectID]*job.ImportJob
	cancelAfter int // report cancel after this many polls; <0 means never
	polls       int
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: make(map[primitive.ObjectID]*job.ImportJob), cancelAfter: -1}
}

func (f *fakeJobRepo) Create(ctx context.Context, j *job.ImportJob) error {
	if j.ID.IsZero() {
		j.ID = primitive.NewObjectID()
	}
	if j.Status == "" {
		j.Status = job.StatusPending
	}
	f.jobs[j.ID] = j
	return nil
}
func (f *fakeJobRepo) Get(ctx context.Context, id primitive.ObjectID) (*job.ImportJob, error) {
	j, ok := f.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job not found")
	}
	return j, nil
}
func (f *fakeJobRepo) List(ctx context.Context, profileID *primitive.ObjectID, limit int64) ([]job.ImportJob, error) {
	var out []job.ImportJob
	for _, j := range f.jobs {
		out = append(out, *j)
	}
	return out, nil
}
func (f *fakeJobRepo) UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to job.JobStatus, failureReason string) error {
	j, ok := f.jobs[id]
	if !ok || j.Status != from {
		return fmt.Errorf("job not in status %s", from)
	}
	if !job.CanTransition(from, to) {
		return fmt.Errorf("illegal transition %s -> %s", from, to)
	}
	j.Status = to
	j.FailureReason = failureReason
	return nil
}
func (f *fakeJobRepo) SaveProgress(ctx context.Context, j *job.ImportJob) error {
	f.jobs[j.ID] = j
	return nil
}
func (f *fakeJobRepo) RequestCancel(ctx context.Context, id primitive.ObjectID) error {
	f.jobs[id].CancelRequested = true
	return nil
}
func (f *fakeJobRepo) CancelRequested(ctx context.Context, id primitive.ObjectID) (bool, error) {
	f.polls++
	if f.cancelAfter >= 0 && f.polls > f.cancelAfter {
		return true, nil
	}
	return f.jobs[id].CancelRequested, nil
}

type fakeLineageRepo struct {
	records []*lineage.ImportRecord
}

func (f *fakeLineageRepo) Create(ctx context.Context, rec *lineage.ImportRecord) error {
	for _, r := range f.records {
		if r.ProfileID == rec.ProfileID && r.SourceTable == rec.SourceTable && r.SourceID == rec.SourceID {
			return fmt.Errorf("duplicate lineage entry")
		}
	}
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	if rec.ImportStatus == "" {
		rec.ImportStatus = lineage.StatusImported
	}
	copied := *rec
	copied.SourceData = copyRow(rec.SourceData)
	f.records = append(f.records, &copied)
	return nil
}
func (f *fakeLineageRepo) Find(ctx context.Context, profileID primitive.ObjectID, sourceTable, sourceID string) (*lineage.ImportRecord, error) {
	for _, r := range f.records {
		if r.ProfileID == profileID && r.SourceTable == sourceTable && r.SourceID == sourceID {
			return r, nil
		}
	}
	return nil, nil
}
func (f *fakeLineageRepo) MarkUpdated(ctx context.Context, id primitive.ObjectID, sourceData map[string]interface{}) error {
	for _, r := range f.records {
		if r.ID == id {
			r.ImportStatus = lineage.StatusUpdated
			r.SourceData = copyRow(sourceData)
			return nil
		}
	}
	return fmt.Errorf("lineage record not found")
}

func copyRow(row map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
func (f *fakeLineageRepo) ListByDestinationTable(ctx context.Context, profileID primitive.ObjectID, destinationTable string, limit int64) ([]lineage.ImportRecord, error) {
	var out []lineage.ImportRecord
	for _, r := range f.records {
		if r.ProfileID == profileID && r.DestinationTable == destinationTable {
			out = append(out, *r)
		}
	}
	return out, nil
}
func (f *fakeLineageRepo) CountByProfile(ctx context.Context, profileID primitive.ObjectID) (int64, error) {
	return int64(len(f.records)), nil
}
func (f *fakeLineageRepo) EnsureIndexes(ctx context.Context) error { return nil }

type fakeDestRepo struct {
	tables map[string]map[string]map[string]interface{}
}

func newFakeDestRepo() *fakeDestRepo {
	return &fakeDestRepo{tables: make(map[string]map[string]map[string]interface{})}
}

func (f *fakeDestRepo) Upsert(ctx context.Context, table, id string, fields map[string]interface{}) (bool, error) {
	if f.tables[table] == nil {
		f.tables[table] = make(map[string]map[string]interface{})
	}
	_, existed := f.tables[table][id]
	doc := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		doc[k] = v
	}
	f.tables[table][id] = doc
	return !existed, nil
}
func (f *fakeDestRepo) Update(ctx context.Context, table, id string, fields map[string]interface{}) error {
	doc, ok := f.tables[table][id]
	if !ok {
		return fmt.Errorf("no %s row %s", table, id)
	}
	for k, v := range fields {
		doc[k] = v
	}
	return nil
}
func (f *fakeDestRepo) FindByID(ctx context.Context, table, id string) (map[string]interface{}, error) {
	return f.tables[table][id], nil
}
func (f *fakeDestRepo) FindAccountByDomain(ctx context.Context, domain string) (*destination.Account, error) {
	for id, doc := range f.tables[destination.TableAccounts] {
		if doc["domain"] == domain {
			return &destination.Account{ID: id, Domain: domain}, nil
		}
	}
	return nil, nil
}
func (f *fakeDestRepo) FindAgentByEmail(ctx context.Context, email string) (*destination.Agent, error) {
	for id, doc := range f.tables[destination.TableAgents] {
		if doc["email"] == email {
			return &destination.Agent{ID: id, Email: email}, nil
		}
	}
	return nil, nil
}
func (f *fakeDestRepo) EnsureIndexes(ctx context.Context) error { return nil }

type fakeReader struct {
	pages map[string][]map[string]interface{}
	subs  map[string][]map[string]interface{}
	byID  map[string]map[string]interface{}
}

func (f *fakeReader) TestConnection(ctx context.Context) (*source.ServerInfo, error) {
	return &source.ServerInfo{Flavor: "api", Version: "test"}, nil
}
func (f *fakeReader) FetchPage(ctx context.Context, resource string, page, perPage int, filters map[string]interface{}) (*source.Page, error) {
	rows := f.pages[resource]
	start := (page - 1) * perPage
	if start > len(rows) {
		start = len(rows)
	}
	end := start + perPage
	if end > len(rows) {
		end = len(rows)
	}
	return &source.Page{
		Rows:    rows[start:end],
		HasMore: end < len(rows),
		Total:   int64(len(rows)),
	}, nil
}
func (f *fakeReader) FetchByID(ctx context.Context, resource, id string) (map[string]interface{}, error) {
	row, ok := f.byID[fmt.Sprintf("%s/%s", resource, id)]
	if !ok {
		return nil, fmt.Errorf("/%s/%s: %w", resource, id, source.ErrNotFound)
	}
	return row, nil
}
func (f *fakeReader) FetchSubResource(ctx context.Context, resource, id, sub string) ([]map[string]interface{}, error) {
	return f.subs[fmt.Sprintf("%s/%s/%s", resource, id, sub)], nil
}
func (f *fakeReader) Close() error { return nil }
func (f *fakeReader) Type() string { return "api" }

// ---- fixtures ----

func deskProfile() *profile.ImportProfile {
	return &profile.ImportProfile{
		ID:              primitive.NewObjectID(),
		Name:            "acme migration",
		SourceType:      "api",
		APIBaseURL:      "http://desk.example",
		AccountStrategy: profile.AccountDomainMapping,
		DomainMappings:  map[string]string{"engines.io": "Analytical Engines"},
		AgentStrategy:   profile.AgentCreateNew,
		ImportMode:      "create",
		ContinueOnError: true,
		IsActive:        true,
	}
}

func deskReader() *fakeReader {
	return &fakeReader{
		pages: map[string][]map[string]interface{}{
			"agents": {
				{"id": float64(1), "email": "bob@helpdesk.io", "name": "Bob Agent", "role": float64(1)},
			},
			"contacts": {
				{"id": float64(10), "email": "ada@engines.io", "name": "Ada Lovelace", "phone": "555-0100"},
				{"id": float64(11), "email": "grace@navy.mil", "name": "Grace Hopper"},
			},
			"tickets": {
				{
					"id": float64(100), "subject": "Engine trouble", "description": "It rattles",
					"requester_id": float64(10), "responder_id": float64(1),
					"status": float64(2), "priority": float64(3), "source": float64(1),
					"created_at": "2024-01-05T10:00:00Z",
				},
			},
		},
		subs: map[string][]map[string]interface{}{
			"tickets/100/comments": {
				{"id": float64(1000), "body": "Looking into it", "user_id": float64(1), "private": false, "created_at": "2024-01-05T11:00:00Z"},
			},
			"tickets/100/time_entries": {
				{"id": float64(2000), "time_spent": float64(30), "agent_id": float64(1), "billable": true},
			},
		},
	}
}

type harness struct {
	svc      *ImportServiceImpl
	jobs     *fakeJobRepo
	lineages *fakeLineageRepo
	dest     *fakeDestRepo
	profile  *profile.ImportProfile
}

func newHarness(t *testing.T, p *profile.ImportProfile, reader source.Reader) *harness {
	t.Helper()

	jobs := newFakeJobRepo()
	lineages := &fakeLineageRepo{}
	dest := newFakeDestRepo()
	cfg := &config.Config{
		ConnectTimeout:  5 * time.Second,
		FetchTimeout:    5 * time.Second,
		SourceChunkSize: 2,
	}

	svc := NewImportService(
		&fakeProfileRepo{p: p},
		&fakeMappingRepo{},
		jobs,
		lineages,
		dest,
		cfg,
		zap.NewNop(),
		nil,
	).(*ImportServiceImpl)
	svc.openSource = func(ctx context.Context, cfg source.Config) (source.Reader, error) {
		return reader, nil
	}

	return &harness{svc: svc, jobs: jobs, lineages: lineages, dest: dest, profile: p}
}

// runJob drives one job synchronously through the worker
func (h *harness) runJob(t *testing.T) *job.ImportJob {
	t.Helper()
	j := &job.ImportJob{ProfileID: h.profile.ID}
	require.NoError(t, h.jobs.Create(context.Background(), j))
	h.svc.run(context.Background(), j.ID)
	got, err := h.jobs.Get(context.Background(), j.ID)
	require.NoError(t, err)
	return got
}

// ---- tests ----

func TestFirstRunImportsEverything(t *testing.T) {
	h := newHarness(t, deskProfile(), deskReader())
	j := h.runJob(t)

	assert.Equal(t, job.StatusCompleted, j.Status)
	assert.Equal(t, 6, j.Counters.Processed, "1 agent + 2 contacts + 1 ticket + 1 comment + 1 time entry")
	assert.Equal(t, 6, j.Counters.Imported)
	assert.Zero(t, j.Counters.Failed)
	assert.Zero(t, j.Counters.Skipped)
	assert.Equal(t, 100.0, j.Progress)

	// Dependency order: the ticket references the already-imported
	// contact, agent and the contact's account
	ticketID := DeterministicID("ticket", "100")
	ticket, err := h.dest.FindByID(context.Background(), destination.TableTickets, ticketID)
	require.NoError(t, err)
	require.NotNil(t, ticket)
	assert.Equal(t, DeterministicID("contact", "10"), ticket["contact_id"])
	assert.Equal(t, DeterministicID("agent", "1"), ticket["agent_id"])
	assert.Equal(t, DeterministicID("account", "domain:engines.io"), ticket["account_id"])
	assert.Equal(t, "open", ticket["status"], "status 2 maps to open")
	assert.Equal(t, "high", ticket["priority"])

	// The unmapped navy.mil domain synthesizes an account
	acc, err := h.dest.FindAccountByDomain(context.Background(), "navy.mil")
	require.NoError(t, err)
	assert.NotNil(t, acc)

	// Every imported row left a lineage entry
	rec, err := h.lineages.Find(context.Background(), h.profile.ID, "tickets", "100")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, lineage.StatusImported, rec.ImportStatus)
	assert.Equal(t, ticketID, rec.DestinationID)
}

func TestRerunUnchangedSkipsEverything(t *testing.T) {
	h := newHarness(t, deskProfile(), deskReader())
	first := h.runJob(t)
	require.Equal(t, job.StatusCompleted, first.Status)

	second := h.runJob(t)
	assert.Equal(t, job.StatusCompleted, second.Status)
	assert.Equal(t, 6, second.Counters.Processed)
	assert.Equal(t, 6, second.Counters.Skipped, "an unchanged source must be a no-op")
	assert.Zero(t, second.Counters.Imported)
	assert.Zero(t, second.Counters.Updated)

	// No duplicate destination rows appeared
	assert.Len(t, h.dest.tables[destination.TableTickets], 1)
	assert.Len(t, h.dest.tables[destination.TableContacts], 2)
}

func TestRerunChangedRowUpdatesInPlace(t *testing.T) {
	reader := deskReader()
	h := newHarness(t, deskProfile(), reader)
	h.runJob(t)

	reader.pages["tickets"][0]["subject"] = "Engine trouble (escalated)"
	second := h.runJob(t)

	assert.Equal(t, job.StatusCompleted, second.Status)
	assert.Equal(t, 1, second.Counters.Updated, "only the changed ticket is touched")
	assert.Equal(t, 5, second.Counters.Skipped)

	ticketID := DeterministicID("ticket", "100")
	ticket, _ := h.dest.FindByID(context.Background(), destination.TableTickets, ticketID)
	assert.Equal(t, "Engine trouble (escalated)", ticket["subject"])
	assert.Len(t, h.dest.tables[destination.TableTickets], 1, "update must not mint a new row")

	rec, _ := h.lineages.Find(context.Background(), h.profile.ID, "tickets", "100")
	assert.Equal(t, lineage.StatusUpdated, rec.ImportStatus)
}

func TestRerunIgnoresUnmappedSourceField(t *testing.T) {
	reader := deskReader()
	h := newHarness(t, deskProfile(), reader)
	h.runJob(t)

	reader.pages["tickets"][0]["etag"] = "v2"
	second := h.runJob(t)

	assert.Equal(t, job.StatusCompleted, second.Status)
	assert.Zero(t, second.Counters.Updated, "a source column nothing maps to is not a change")
	assert.Equal(t, 6, second.Counters.Skipped)

	rec, _ := h.lineages.Find(context.Background(), h.profile.ID, "tickets", "100")
	assert.Equal(t, lineage.StatusImported, rec.ImportStatus)
}

func TestAbortOnFirstErrorWhenContinueDisabled(t *testing.T) {
	reader := deskReader()
	reader.pages["tickets"] = []map[string]interface{}{
		{"id": float64(101), "requester_id": float64(10)}, // no subject
		reader.pages["tickets"][0],
	}
	p := deskProfile()
	p.ContinueOnError = false
	h := newHarness(t, p, reader)
	j := h.runJob(t)

	assert.Equal(t, job.StatusFailed, j.Status)
	assert.Equal(t, 1, j.Counters.Failed)
	assert.Contains(t, j.FailureReason, "aborted")
	require.NotEmpty(t, j.Errors)
	assert.Equal(t, "101", j.Errors[0].SourceID)

	// The good ticket behind the bad one was never reached
	ticket, _ := h.dest.FindByID(context.Background(), destination.TableTickets, DeterministicID("ticket", "100"))
	assert.Nil(t, ticket)
}

func TestMappingSkippable(t *testing.T) {
	schemaErr := &SchemaError{Table: "tickets", Err: fmt.Errorf("no such column")}
	connErr := &source.ConnectionError{Op: "query", Err: fmt.Errorf("server has gone away")}

	assert.True(t, mappingSkippable(schemaErr, true), "a schema mismatch only costs its mapping")
	assert.False(t, mappingSkippable(schemaErr, false))
	assert.False(t, mappingSkippable(connErr, true), "connection loss stops the run regardless")
	assert.False(t, mappingSkippable(errCancelled, true))
	assert.False(t, mappingSkippable(&ValidationError{Field: "email", Reason: "missing"}, true))
}

func TestPartialFailureCompletesWithErrors(t *testing.T) {
	reader := deskReader()
	reader.pages["tickets"] = append(reader.pages["tickets"],
		map[string]interface{}{"id": float64(101), "requester_id": float64(10)}, // no subject
	)
	h := newHarness(t, deskProfile(), reader)
	j := h.runJob(t)

	assert.Equal(t, job.StatusCompletedWithErrors, j.Status)
	assert.Equal(t, 1, j.Counters.Failed)
	assert.Equal(t, 6, j.Counters.Imported, "good rows land even when a bad one fails")
	require.NotEmpty(t, j.Errors)
	assert.Equal(t, "validation", j.Errors[0].Kind)
	assert.Equal(t, "101", j.Errors[0].SourceID)

	// The failed row must leave no trace
	rec, _ := h.lineages.Find(context.Background(), h.profile.ID, "tickets", "101")
	assert.Nil(t, rec)
}

func TestTicketRequesterFetchedLazily(t *testing.T) {
	reader := deskReader()
	reader.pages["tickets"] = append(reader.pages["tickets"],
		map[string]interface{}{
			"id": float64(102), "subject": "Spare parts", "requester_id": float64(99),
			"status": float64(2), "priority": float64(1), "source": float64(1),
		},
	)
	reader.byID = map[string]map[string]interface{}{
		"contacts/99": {"id": float64(99), "email": "charles@engines.io", "name": "Charles Babbage"},
	}
	h := newHarness(t, deskProfile(), reader)
	j := h.runJob(t)

	assert.Equal(t, job.StatusCompleted, j.Status)
	assert.Equal(t, 8, j.Counters.Imported, "the lazily fetched requester counts as an imported row")

	ticket, err := h.dest.FindByID(context.Background(), destination.TableTickets, DeterministicID("ticket", "102"))
	require.NoError(t, err)
	require.NotNil(t, ticket)
	assert.Equal(t, DeterministicID("contact", "99"), ticket["contact_id"])

	// A requester missing from the source entirely fails the ticket row
	reader.pages["tickets"] = append(reader.pages["tickets"],
		map[string]interface{}{"id": float64(103), "subject": "Ghost", "requester_id": float64(77)},
	)
	second := h.runJob(t)
	assert.Equal(t, job.StatusCompletedWithErrors, second.Status)
	assert.Equal(t, 1, second.Counters.Failed)
}

func TestConnectionFailureFailsJob(t *testing.T) {
	h := newHarness(t, deskProfile(), deskReader())
	h.svc.openSource = func(ctx context.Context, cfg source.Config) (source.Reader, error) {
		return nil, &source.ConnectionError{Op: "ping", Err: fmt.Errorf("host unreachable")}
	}

	j := h.runJob(t)
	assert.Equal(t, job.StatusFailed, j.Status)
	assert.Contains(t, j.FailureReason, "host unreachable")
	assert.Zero(t, j.Counters.Processed)
}

func TestCancellationStopsBetweenRows(t *testing.T) {
	h := newHarness(t, deskProfile(), deskReader())
	h.jobs.cancelAfter = 2

	j := h.runJob(t)
	assert.Equal(t, job.StatusCancelled, j.Status)
	assert.Less(t, j.Counters.Processed, 6, "the worker must stop early")

	// Rows that landed before the cancel stay landed
	assert.Equal(t, j.Counters.Processed, j.Counters.Imported+j.Counters.Skipped+j.Counters.Failed+j.Counters.Updated)
}

func TestDuplicateDetectionSkipsMatchingRow(t *testing.T) {
	reader := deskReader()
	p := deskProfile()
	h := newHarness(t, p, reader)
	h.runJob(t)

	// A different source row carrying an already-imported email
	reader.pages["contacts"] = append(reader.pages["contacts"],
		map[string]interface{}{"id": float64(12), "email": "ada@engines.io", "name": "A. Lovelace"},
	)
	p.Dedupe = dedupe.MatchingStrategy{Enabled: true, PrimaryFields: []string{"email"}}
	p.SkipDuplicates = true

	second := h.runJob(t)
	assert.Equal(t, job.StatusCompleted, second.Status)

	rec, _ := h.lineages.Find(context.Background(), p.ID, "contacts", "12")
	assert.Nil(t, rec, "a skipped duplicate gets no lineage entry")
	assert.Len(t, h.dest.tables[destination.TableContacts], 2, "no third contact row")
}

func TestAgentMatchExistingReusesDestinationAgent(t *testing.T) {
	reader := deskReader()
	p := deskProfile()
	p.AgentStrategy = profile.AgentMatchExisting
	h := newHarness(t, p, reader)

	// Pre-provision the destination agent the source agent should map to
	existingID := "11111111-2222-3333-4444-555555555555"
	_, err := h.dest.Upsert(context.Background(), destination.TableAgents, existingID,
		map[string]interface{}{"email": "bob@helpdesk.io", "name": "Bob"})
	require.NoError(t, err)

	j := h.runJob(t)
	require.Equal(t, job.StatusCompleted, j.Status)

	ticket, _ := h.dest.FindByID(context.Background(), destination.TableTickets, DeterministicID("ticket", "100"))
	assert.Equal(t, existingID, ticket["agent_id"], "tickets must reference the matched agent")
	assert.Len(t, h.dest.tables[destination.TableAgents], 1, "no duplicate agent created")
}

func TestStrictDomainMappingRejectsUnmappedDomain(t *testing.T) {
	reader := deskReader()
	p := deskProfile()
	p.AccountStrategy = profile.AccountDomainMappingStrict

	h := newHarness(t, p, reader)
	j := h.runJob(t)

	// grace@navy.mil has no mapping: her contact fails, everything else lands
	assert.Equal(t, job.StatusCompletedWithErrors, j.Status)
	assert.Equal(t, 1, j.Counters.Failed)

	rec, _ := h.lineages.Find(context.Background(), p.ID, "contacts", "11")
	assert.Nil(t, rec)
}

func TestImportMappedRow(t *testing.T) {
	p := deskProfile()
	h := newHarness(t, p, deskReader())

	m := &mapping.Mapping{
		Name:             "legacy tickets",
		BaseTable:        "legacy_tickets",
		DestinationTable: "tickets",
		FieldMappings:    map[string]string{"subject": "title"},
		TransformationRules: map[string]transform.Rule{
			"status": {Kind: transform.RuleStatusMapping, Map: map[string]string{"2": "open"}, Default: "closed"},
		},
		ValidationRules: map[string][]string{
			"title":     {"required"},
			"ref_email": {"email", "unique"},
		},
	}
	require.NoError(t, mapping.ParseMapping(m))

	j := &job.ImportJob{ID: primitive.NewObjectID(), ProfileID: p.ID, Status: job.StatusRunning}
	jc := NewJobContext(j, p, nil)

	row := map[string]interface{}{
		"id": int64(5), "title": "Printer on fire", "status": int64(2), "ref_email": "ops@engines.io",
	}
	status, err := h.svc.importMappedRow(context.Background(), jc, m, row)
	require.NoError(t, err)
	assert.Equal(t, lineage.StatusImported, status)

	destID := DeterministicID("tickets", "5")
	doc, _ := h.dest.FindByID(context.Background(), destination.TableTickets, destID)
	require.NotNil(t, doc)
	assert.Equal(t, "Printer on fire", doc["subject"])
	assert.Equal(t, "open", doc["status"])

	// Same unique value in a later row fails validation
	dup := map[string]interface{}{"id": int64(6), "title": "Another", "status": int64(2), "ref_email": "ops@engines.io"}
	_, err = h.svc.importMappedRow(context.Background(), jc, m, dup)
	require.Error(t, err)
	assert.Equal(t, "validation", errorKind(err))

	// Missing required field fails too
	bad := map[string]interface{}{"id": int64(7), "status": int64(2)}
	_, err = h.svc.importMappedRow(context.Background(), jc, m, bad)
	require.Error(t, err)
	assert.Equal(t, "validation", errorKind(err))
}
