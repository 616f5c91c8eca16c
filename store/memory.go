package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"instant-win-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MemoryStore keeps everything in process memory. Transactions run one at a
// time against a private copy of the state that replaces the shared state
// only when fn succeeds, which gives serializable semantics.
//
// Used by tests and by STORE_DRIVER=memory for local runs.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
	now   func() time.Time
}

type memState struct {
	seq       int64
	campaigns map[string]models.Campaign
	prizes    map[string]models.Prize
	urls      map[string]memURL
	records   map[string]memRecord
	overrides map[string]models.ChanceOverride
	grants    map[string]models.ClaimedGrant
	usages    map[string]models.GrantUsage
	requests  map[string]memRequest
}

type memURL struct {
	seq int64
	url models.PrizeURL
}

type memRecord struct {
	seq    int64
	record *models.ParticipationRecord // never mutated after insert
}

type memRequest struct {
	seq     int64
	request models.ParticipationRequest
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memState{
			campaigns: map[string]models.Campaign{},
			prizes:    map[string]models.Prize{},
			urls:      map[string]memURL{},
			records:   map[string]memRecord{},
			overrides: map[string]models.ChanceOverride{},
			grants:    map[string]models.ClaimedGrant{},
			usages:    map[string]models.GrantUsage{},
			requests:  map[string]memRequest{},
		},
		now: time.Now,
	}
}

// clone copies the maps. Values are either plain structs or pointers that are
// replaced, never mutated, so a shallow copy per map is enough.
func (s *memState) clone() *memState {
	out := &memState{
		seq:       s.seq,
		campaigns: make(map[string]models.Campaign, len(s.campaigns)),
		prizes:    make(map[string]models.Prize, len(s.prizes)),
		urls:      make(map[string]memURL, len(s.urls)),
		records:   make(map[string]memRecord, len(s.records)),
		overrides: make(map[string]models.ChanceOverride, len(s.overrides)),
		grants:    make(map[string]models.ClaimedGrant, len(s.grants)),
		usages:    make(map[string]models.GrantUsage, len(s.usages)),
		requests:  make(map[string]memRequest, len(s.requests)),
	}
	for k, v := range s.campaigns {
		out.campaigns[k] = v
	}
	for k, v := range s.prizes {
		out.prizes[k] = v
	}
	for k, v := range s.urls {
		out.urls[k] = v
	}
	for k, v := range s.records {
		out.records[k] = v
	}
	for k, v := range s.overrides {
		out.overrides[k] = v
	}
	for k, v := range s.grants {
		out.grants[k] = v
	}
	for k, v := range s.usages {
		out.usages[k] = v
	}
	for k, v := range s.requests {
		out.requests[k] = v
	}
	return out
}

func (s *memState) next() int64 {
	s.seq++
	return s.seq
}

func userKey(campaignID, userID string) string {
	return campaignID + "\x00" + userID
}

func grantKey(campaignID, userID, sourceID string) string {
	return campaignID + "\x00" + userID + "\x00" + sourceID
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&memTx{st: work, now: s.now}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *MemoryStore) read() *memState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *MemoryStore) GetCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	st := s.read()
	c, ok := st.campaigns[id]
	if !ok {
		return nil, fmt.Errorf("campaign %s: %w", id, ErrNotFound)
	}
	return &c, nil
}

func (s *MemoryStore) ListPrizes(ctx context.Context, campaignID string) ([]models.Prize, error) {
	return s.read().listPrizes(campaignID), nil
}

func (s *MemoryStore) GetRecord(ctx context.Context, id string) (*models.ParticipationRecord, error) {
	rec, ok := s.read().records[id]
	if !ok {
		return nil, fmt.Errorf("record %s: %w", id, ErrNotFound)
	}
	return rec.record.Clone(), nil
}

func (s *MemoryStore) ListRecords(ctx context.Context, campaignID, userID string) ([]models.ParticipationRecord, error) {
	st := s.read()
	var matched []memRecord
	for _, r := range st.records {
		if r.record.CampaignID == campaignID && r.record.UserID == userID {
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })

	out := make([]models.ParticipationRecord, 0, len(matched))
	for _, r := range matched {
		out = append(out, *r.record.Clone())
	}
	return out, nil
}

func (s *MemoryStore) ListStaleRequests(ctx context.Context, cutoff time.Time) ([]models.ParticipationRequest, error) {
	st := s.read()
	var matched []memRequest
	for _, r := range st.requests {
		if r.request.Status == models.RequestPending && r.request.CreatedAt.Before(cutoff) {
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })

	out := make([]models.ParticipationRequest, 0, len(matched))
	for _, r := range matched {
		out = append(out, r.request)
	}
	return out, nil
}

func (s *MemoryStore) ListGrantUsages(ctx context.Context, campaignID string) ([]models.GrantUsage, error) {
	st := s.read()
	var out []models.GrantUsage
	for _, u := range st.usages {
		if u.CampaignID == campaignID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *memState) listPrizes(campaignID string) []models.Prize {
	var out []models.Prize
	for _, p := range s.prizes {
		if p.CampaignID == campaignID && !p.DeletedAt.Valid {
			out = append(out, p)
		}
	}
	models.SortPrizes(out)
	return out
}

type memTx struct {
	st  *memState
	now func() time.Time
}

func (t *memTx) LockChanceOverride(campaignID, userID string) (*models.ChanceOverride, error) {
	key := userKey(campaignID, userID)
	o, ok := t.st.overrides[key]
	if !ok {
		now := t.now()
		o = models.ChanceOverride{ID: uuid.NewString(), CampaignID: campaignID, UserID: userID}
		o.CreatedAt, o.UpdatedAt = now, now
		t.st.overrides[key] = o
	}
	return &o, nil
}

func (t *memTx) SaveChanceOverride(o *models.ChanceOverride) error {
	key := userKey(o.CampaignID, o.UserID)
	cur, ok := t.st.overrides[key]
	if !ok || cur.ID != o.ID {
		return fmt.Errorf("chance override %s: %w", o.ID, ErrNotFound)
	}
	cur.ExtraChances = o.ExtraChances
	cur.UpdatedAt = t.now()
	t.st.overrides[key] = cur
	return nil
}

func (t *memTx) CountRecords(campaignID, userID string) (int64, error) {
	var n int64
	for _, r := range t.st.records {
		if r.record.CampaignID == campaignID && r.record.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (t *memTx) LastParticipation(campaignID, userID string) (*time.Time, error) {
	var last *time.Time
	for _, r := range t.st.records {
		if r.record.CampaignID != campaignID || r.record.UserID != userID {
			continue
		}
		at := r.record.ParticipatedAt
		if last == nil || at.After(*last) {
			last = &at
		}
	}
	return last, nil
}

func (t *memTx) HeldPrizeIDs(campaignID, userID string) ([]string, error) {
	seen := map[string]bool{}
	var ids []string
	for _, r := range t.st.records {
		rec := r.record
		if rec.CampaignID != campaignID || rec.UserID != userID || !rec.IsWin || rec.IsConsolationPrize {
			continue
		}
		if !seen[rec.PrizeID] {
			seen[rec.PrizeID] = true
			ids = append(ids, rec.PrizeID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (t *memTx) ListPrizes(campaignID string) ([]models.Prize, error) {
	return t.st.listPrizes(campaignID), nil
}

func (t *memTx) LockPrize(prizeID string) (*models.Prize, error) {
	p, ok := t.st.prizes[prizeID]
	if !ok || p.DeletedAt.Valid {
		return nil, fmt.Errorf("prize %s: %w", prizeID, ErrNotFound)
	}
	return &p, nil
}

func (t *memTx) UpdatePrizeCounters(prizeID string, stock, winnersCount int) error {
	p, ok := t.st.prizes[prizeID]
	if !ok {
		return fmt.Errorf("prize %s: %w", prizeID, ErrNotFound)
	}
	p.Stock = stock
	p.WinnersCount = winnersCount
	p.UpdatedAt = t.now()
	t.st.prizes[prizeID] = p
	return nil
}

func (t *memTx) TakePrizeURL(prizeID, userID string, at time.Time) (*models.PrizeURL, error) {
	var (
		pick  memURL
		found bool
	)
	for _, u := range t.st.urls {
		if u.url.PrizeID != prizeID || u.url.AssignedTo != nil {
			continue
		}
		if !found || u.seq < pick.seq {
			pick, found = u, true
		}
	}
	if !found {
		return nil, fmt.Errorf("url pool of prize %s: %w", prizeID, ErrNotFound)
	}

	assignee := userID
	assignedAt := at
	pick.url.AssignedTo = &assignee
	pick.url.AssignedAt = &assignedAt
	t.st.urls[pick.url.ID] = pick

	out := pick.url
	return &out, nil
}

func (t *memTx) AddPrizeURLs(urls []models.PrizeURL) error {
	for _, u := range urls {
		if u.ID == "" {
			u.ID = uuid.NewString()
		}
		if _, exists := t.st.urls[u.ID]; exists {
			return fmt.Errorf("prize url %s: %w", u.ID, ErrConflict)
		}
		if u.CreatedAt.IsZero() {
			u.CreatedAt = t.now()
		}
		t.st.urls[u.ID] = memURL{seq: t.st.next(), url: u}
	}
	return nil
}

func (t *memTx) CreateRecord(r *models.ParticipationRecord) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if _, exists := t.st.records[r.ID]; exists {
		return fmt.Errorf("record %s: %w", r.ID, ErrConflict)
	}
	now := t.now()
	r.CreatedAt, r.UpdatedAt = now, now
	t.st.records[r.ID] = memRecord{seq: t.st.next(), record: r.Clone()}
	return nil
}

func (t *memTx) LockRecord(id string) (*models.ParticipationRecord, error) {
	rec, ok := t.st.records[id]
	if !ok {
		return nil, fmt.Errorf("record %s: %w", id, ErrNotFound)
	}
	return rec.record.Clone(), nil
}

func (t *memTx) UpdateRecordUsage(r *models.ParticipationRecord) error {
	cur, ok := t.st.records[r.ID]
	if !ok {
		return fmt.Errorf("record %s: %w", r.ID, ErrNotFound)
	}
	next := cur.record.Clone()
	src := r.Clone()
	next.CouponUsedCount = src.CouponUsedCount
	next.CouponUsageHistory = src.CouponUsageHistory
	next.ShippingAddress = src.ShippingAddress
	next.QuestionnaireAnswers = src.QuestionnaireAnswers
	next.UpdatedAt = t.now()
	t.st.records[r.ID] = memRecord{seq: cur.seq, record: next}
	return nil
}

func (t *memTx) HasClaimedGrant(campaignID, userID, sourceID string) (bool, error) {
	_, ok := t.st.grants[grantKey(campaignID, userID, sourceID)]
	return ok, nil
}

func (t *memTx) CreateClaimedGrant(g *models.ClaimedGrant) error {
	key := grantKey(g.CampaignID, g.UserID, g.SourceID)
	if _, exists := t.st.grants[key]; exists {
		return fmt.Errorf("claimed grant %s: %w", g.SourceID, ErrConflict)
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.ClaimedAt.IsZero() {
		g.ClaimedAt = t.now()
	}
	t.st.grants[key] = *g
	return nil
}

func (t *memTx) IncrementGrantUsage(campaignID, sourceID string) error {
	key := userKey(campaignID, sourceID)
	u, ok := t.st.usages[key]
	if !ok {
		u = models.GrantUsage{CampaignID: campaignID, SourceID: sourceID}
	}
	u.UsedCount++
	u.UpdatedAt = t.now()
	t.st.usages[key] = u
	return nil
}

func (t *memTx) CreateRequest(r *models.ParticipationRequest) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if _, exists := t.st.requests[r.ID]; exists {
		return fmt.Errorf("request %s: %w", r.ID, ErrConflict)
	}
	now := t.now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	t.st.requests[r.ID] = memRequest{seq: t.st.next(), request: copyRequest(*r)}
	return nil
}

func (t *memTx) LockRequest(id string) (*models.ParticipationRequest, error) {
	r, ok := t.st.requests[id]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	out := copyRequest(r.request)
	return &out, nil
}

func (t *memTx) UpdateRequest(r *models.ParticipationRequest) error {
	cur, ok := t.st.requests[r.ID]
	if !ok {
		return fmt.Errorf("request %s: %w", r.ID, ErrNotFound)
	}
	cur.request.Status = r.Status
	cur.request.ReviewedBy = r.ReviewedBy
	cur.request.ReviewedAt = r.ReviewedAt
	cur.request.RejectReason = r.RejectReason
	cur.request.UpdatedAt = t.now()
	t.st.requests[r.ID] = cur
	return nil
}

func (t *memTx) FindPendingRequest(campaignID, userID string) (*models.ParticipationRequest, error) {
	var (
		pick  memRequest
		found bool
	)
	for _, r := range t.st.requests {
		req := r.request
		if req.CampaignID != campaignID || req.UserID != userID || req.Status != models.RequestPending {
			continue
		}
		if !found || r.seq < pick.seq {
			pick, found = r, true
		}
	}
	if !found {
		return nil, fmt.Errorf("pending request: %w", ErrNotFound)
	}
	out := copyRequest(pick.request)
	return &out, nil
}

func (t *memTx) SaveCampaign(c *models.Campaign, prizes []models.Prize) error {
	keep := make(map[string]struct{}, len(prizes))
	for _, p := range prizes {
		if prev, ok := t.st.prizes[p.ID]; ok && prev.CampaignID != c.ID {
			return fmt.Errorf("prize %s: %w", p.ID, ErrPrizeOwnedElsewhere)
		}
		keep[p.ID] = struct{}{}
	}

	now := t.now()
	if prev, ok := t.st.campaigns[c.ID]; ok {
		c.CreatedAt = prev.CreatedAt
	} else {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	t.st.campaigns[c.ID] = *c

	for i := range prizes {
		p := prizes[i]
		p.CampaignID = c.ID
		p.DeletedAt = gorm.DeletedAt{}
		if prev, ok := t.st.prizes[p.ID]; ok {
			p.Stock = prev.Stock
			p.WinnersCount = prev.WinnersCount
			p.CreatedAt = prev.CreatedAt
		} else {
			p.CreatedAt = now
		}
		p.UpdatedAt = now
		t.st.prizes[p.ID] = p
		prizes[i] = p
	}

	for id, p := range t.st.prizes {
		if _, ok := keep[id]; ok || p.CampaignID != c.ID || p.DeletedAt.Valid {
			continue
		}
		p.DeletedAt = gorm.DeletedAt{Time: now, Valid: true}
		t.st.prizes[id] = p
	}
	return nil
}

func copyRequest(r models.ParticipationRequest) models.ParticipationRequest {
	if r.FormData != nil {
		form := make(map[string]string, len(r.FormData))
		for k, v := range r.FormData {
			form[k] = v
		}
		r.FormData = form
	}
	return r
}
