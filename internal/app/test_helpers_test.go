package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/example/roster/internal/models"
	"github.com/example/roster/internal/ports/secondary"
)

var testNow = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC) // Tuesday

// ============================================================================
// Directory
// ============================================================================

type mockDirectory struct {
	personas map[string]models.Persona
}

func newMockDirectory(personas ...models.Persona) *mockDirectory {
	d := &mockDirectory{personas: make(map[string]models.Persona)}
	for _, p := range personas {
		d.personas[p.ID] = p
	}
	return d
}

func (d *mockDirectory) Get(id string) (models.Persona, bool) {
	p, ok := d.personas[id]
	return p, ok
}

func (d *mockDirectory) List() []models.Persona {
	var out []models.Persona
	for _, p := range d.personas {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ============================================================================
// Repositories
// ============================================================================

type mockPersonaStateRepository struct {
	states    map[string]*secondary.PersonaStateRecord
	getErr    error
	upsertErr error
	// conflictOnce makes the next upsert fail with a version conflict.
	conflictOnce bool
	upserts      int
}

func newMockPersonaStateRepository() *mockPersonaStateRepository {
	return &mockPersonaStateRepository{states: make(map[string]*secondary.PersonaStateRecord)}
}

func (m *mockPersonaStateRepository) Get(ctx context.Context, personaID string) (*secondary.PersonaStateRecord, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	rec, ok := m.states[personaID]
	if !ok {
		return nil, fmt.Errorf("persona state %s: %w", personaID, secondary.ErrNotFound)
	}
	copied := *rec
	return &copied, nil
}

func (m *mockPersonaStateRepository) Upsert(ctx context.Context, record *secondary.PersonaStateRecord, expectedVersion int) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	if m.conflictOnce {
		m.conflictOnce = false
		return secondary.ErrVersionConflict
	}
	current, ok := m.states[record.PersonaID]
	switch {
	case expectedVersion == 0 && ok:
		return secondary.ErrVersionConflict
	case expectedVersion != 0 && (!ok || current.Version != expectedVersion):
		return secondary.ErrVersionConflict
	}
	record.Version = expectedVersion + 1
	copied := *record
	m.states[record.PersonaID] = &copied
	m.upserts++
	return nil
}

func (m *mockPersonaStateRepository) List(ctx context.Context) ([]*secondary.PersonaStateRecord, error) {
	var out []*secondary.PersonaStateRecord
	for _, r := range m.states {
		out = append(out, r)
	}
	return out, nil
}

type mockCycleRepository struct {
	cycles    map[string]*secondary.CycleRecord
	createErr error
	updateErr error
}

func newMockCycleRepository() *mockCycleRepository {
	return &mockCycleRepository{cycles: make(map[string]*secondary.CycleRecord)}
}

func (m *mockCycleRepository) Create(ctx context.Context, record *secondary.CycleRecord) error {
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.cycles[record.ID]; ok {
		return nil
	}
	copied := *record
	m.cycles[record.ID] = &copied
	return nil
}

func (m *mockCycleRepository) Update(ctx context.Context, record *secondary.CycleRecord) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.cycles[record.ID]; !ok {
		return secondary.ErrNotFound
	}
	copied := *record
	m.cycles[record.ID] = &copied
	return nil
}

func (m *mockCycleRepository) GetByID(ctx context.Context, id string) (*secondary.CycleRecord, error) {
	rec, ok := m.cycles[id]
	if !ok {
		return nil, fmt.Errorf("cycle %s: %w", id, secondary.ErrNotFound)
	}
	return rec, nil
}

func (m *mockCycleRepository) List(ctx context.Context, filters secondary.CycleFilters) ([]*secondary.CycleRecord, error) {
	var out []*secondary.CycleRecord
	for _, c := range m.cycles {
		if filters.PersonaID != "" && c.PersonaID != filters.PersonaID {
			continue
		}
		if filters.Status != "" && c.Status != filters.Status {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, nil
}

type mockActionResultRepository struct {
	results   map[string]*secondary.ActionResultRecord
	recordErr error
	// failAtIndex makes recording the result at that index fail.
	failAtIndex int
}

func newMockActionResultRepository() *mockActionResultRepository {
	return &mockActionResultRepository{results: make(map[string]*secondary.ActionResultRecord), failAtIndex: -1}
}

func (m *mockActionResultRepository) Record(ctx context.Context, record *secondary.ActionResultRecord) error {
	if m.recordErr != nil || record.Index == m.failAtIndex {
		return errors.New("disk full")
	}
	copied := *record
	m.results[record.ID] = &copied
	return nil
}

func (m *mockActionResultRepository) ListByCycle(ctx context.Context, cycleID string) ([]*secondary.ActionResultRecord, error) {
	var out []*secondary.ActionResultRecord
	for _, r := range m.results {
		if r.CycleID == cycleID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (m *mockActionResultRepository) ListRecentByPersona(ctx context.Context, personaID string, limit int) ([]*secondary.ActionResultRecord, error) {
	var out []*secondary.ActionResultRecord
	for _, r := range m.results {
		if r.PersonaID == personaID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index > out[j].Index })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type mockAuditLogRepository struct {
	entries []*secondary.AuditEntry
}

func newMockAuditLogRepository() *mockAuditLogRepository {
	return &mockAuditLogRepository{}
}

func (m *mockAuditLogRepository) Append(ctx context.Context, entry *secondary.AuditEntry) error {
	for _, e := range m.entries {
		if e.ID == entry.ID {
			return nil
		}
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditLogRepository) List(ctx context.Context, filters secondary.AuditFilters) ([]*secondary.AuditEntry, error) {
	return m.entries, nil
}

type mockFollowupRepository struct {
	followups map[string]*secondary.FollowupRecord
	listErr   error
}

func newMockFollowupRepository() *mockFollowupRepository {
	return &mockFollowupRepository{followups: make(map[string]*secondary.FollowupRecord)}
}

func (m *mockFollowupRepository) Upsert(ctx context.Context, record *secondary.FollowupRecord) error {
	copied := *record
	m.followups[record.ID] = &copied
	return nil
}

func (m *mockFollowupRepository) GetByID(ctx context.Context, id string) (*secondary.FollowupRecord, error) {
	rec, ok := m.followups[id]
	if !ok {
		return nil, fmt.Errorf("followup %s: %w", id, secondary.ErrNotFound)
	}
	copied := *rec
	return &copied, nil
}

func (m *mockFollowupRepository) ListOpen(ctx context.Context, ownerID string, now time.Time, limit int) ([]*secondary.FollowupRecord, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*secondary.FollowupRecord
	for _, f := range m.followups {
		if f.OwnerID != ownerID {
			continue
		}
		if f.Status == secondary.FollowupOpen ||
			(f.Status == secondary.FollowupDeferred && f.DeferredUntil != nil && !f.DeferredUntil.After(now)) {
			out = append(out, f)
		}
	}
	return out, nil
}

type mockSyncCheckpointRepository struct {
	checkpoints map[string]*secondary.SyncCheckpoint
}

func newMockSyncCheckpointRepository() *mockSyncCheckpointRepository {
	return &mockSyncCheckpointRepository{checkpoints: make(map[string]*secondary.SyncCheckpoint)}
}

func (m *mockSyncCheckpointRepository) Get(ctx context.Context, scope, key string) (*secondary.SyncCheckpoint, error) {
	cp, ok := m.checkpoints[scope+"/"+key]
	if !ok {
		return nil, secondary.ErrNotFound
	}
	return cp, nil
}

func (m *mockSyncCheckpointRepository) Upsert(ctx context.Context, cp *secondary.SyncCheckpoint) error {
	if existing, ok := m.checkpoints[cp.Scope+"/"+cp.Key]; ok && existing.LastSeenAt.After(cp.LastSeenAt) {
		return nil
	}
	m.checkpoints[cp.Scope+"/"+cp.Key] = cp
	return nil
}

type mockStepRunRepository struct {
	runs    map[string]*secondary.StepRun
	getErr  error
	saveErr error
}

func newMockStepRunRepository() *mockStepRunRepository {
	return &mockStepRunRepository{runs: make(map[string]*secondary.StepRun)}
}

func (m *mockStepRunRepository) Get(ctx context.Context, key string) (*secondary.StepRun, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	run, ok := m.runs[key]
	if !ok {
		return nil, secondary.ErrNotFound
	}
	return run, nil
}

func (m *mockStepRunRepository) Save(ctx context.Context, run *secondary.StepRun) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	if _, ok := m.runs[run.Key]; !ok {
		m.runs[run.Key] = run
	}
	return nil
}

// ============================================================================
// Collaborators
// ============================================================================

type mockInbound struct {
	messages []models.Message
	err      error
	calls    int
}

func (m *mockInbound) ListRecent(ctx context.Context, identity string, since time.Time, limit int) ([]models.Message, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([]models.Message, len(m.messages))
	copy(out, m.messages)
	return out, nil
}

type mockSink struct {
	sent      []secondary.SendRequest
	err       error
	simulated bool
}

func newMockSink() *mockSink {
	return &mockSink{}
}

func (m *mockSink) Send(ctx context.Context, req secondary.SendRequest) (*models.SendReceipt, error) {
	if m.err != nil {
		return nil, m.err
	}
	if !m.simulated {
		m.sent = append(m.sent, req)
	}
	return &models.SendReceipt{
		MessageID: fmt.Sprintf("msg-%d", len(m.sent)),
		ThreadID:  "thread-1",
		SentAt:    testNow,
		Simulated: m.simulated,
	}, nil
}

type mockChannels struct {
	handles  map[string]models.ChannelHandle
	messages map[string][]models.ChannelMessage
	posts    []string
	listErr  error
	postErr  error
	direct   []string
}

func newMockChannels(names ...string) *mockChannels {
	m := &mockChannels{
		handles:  make(map[string]models.ChannelHandle),
		messages: make(map[string][]models.ChannelMessage),
	}
	for _, n := range names {
		m.handles[n] = models.ChannelHandle{ID: "ch-" + n[1:], Name: n}
	}
	return m
}

func (m *mockChannels) ListChannelsFor(ctx context.Context, identity string) ([]models.ChannelHandle, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []models.ChannelHandle
	for _, h := range m.handles {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockChannels) ListRecent(ctx context.Context, h models.ChannelHandle, since time.Time, limit int) ([]models.ChannelMessage, error) {
	out := make([]models.ChannelMessage, len(m.messages[h.Name]))
	copy(out, m.messages[h.Name])
	return out, nil
}

func (m *mockChannels) Post(ctx context.Context, author string, h models.ChannelHandle, text, replyTo string) (*models.PostReceipt, error) {
	if m.postErr != nil {
		return nil, m.postErr
	}
	m.posts = append(m.posts, h.Name+": "+text)
	return &models.PostReceipt{MessageID: fmt.Sprintf("post-%d", len(m.posts)), ChannelID: h.ID, PostedAt: testNow}, nil
}

func (m *mockChannels) ResolveByName(ctx context.Context, name string) (*models.ChannelHandle, error) {
	h, ok := m.handles[name]
	if !ok {
		return nil, fmt.Errorf("channel %s: %w", name, secondary.ErrNotFound)
	}
	return &h, nil
}

func (m *mockChannels) OpenDirect(ctx context.Context, from, identity string) (*models.ChannelHandle, error) {
	m.direct = append(m.direct, from+"|"+identity)
	return &models.ChannelHandle{ID: "dm-1", Name: "dm:" + from + "|" + identity, Direct: true}, nil
}

type mockConversations struct {
	cached   []models.ChannelMessage
	sent     map[string][]models.Message
	posts    map[string][]models.ChannelMessage
	cacheErr error
}

func newMockConversations() *mockConversations {
	return &mockConversations{
		sent:  make(map[string][]models.Message),
		posts: make(map[string][]models.ChannelMessage),
	}
}

func (m *mockConversations) CacheChannelMessages(ctx context.Context, msgs []models.ChannelMessage) error {
	if m.cacheErr != nil {
		return m.cacheErr
	}
	m.cached = append(m.cached, msgs...)
	return nil
}

func (m *mockConversations) RecordSent(ctx context.Context, ownerID string, msg models.Message) error {
	m.sent[ownerID] = append(m.sent[ownerID], msg)
	return nil
}

func (m *mockConversations) RecordPost(ctx context.Context, ownerID string, msg models.ChannelMessage) error {
	m.posts[ownerID] = append(m.posts[ownerID], msg)
	return nil
}

func (m *mockConversations) ListSent(ctx context.Context, ownerID string, since time.Time, limit int) ([]models.Message, error) {
	return m.sent[ownerID], nil
}

type mockOracle struct {
	raw   string
	err   error
	block bool
	calls int
	// lastContext is the context block of the most recent call.
	lastContext string
}

func (m *mockOracle) Decide(ctx context.Context, instructions, contextBlock string) (*secondary.OracleResponse, error) {
	m.calls++
	m.lastContext = contextBlock
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.err != nil {
		return nil, m.err
	}
	return &secondary.OracleResponse{Raw: m.raw, Latency: 120 * time.Millisecond, PromptTokens: 900, CompletionTokens: 80}, nil
}
