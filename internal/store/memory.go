package store

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayush/skillswap/internal/errs"
	"github.com/ayush/skillswap/internal/models"
)

// MemoryUsers is an in-process user directory with the same contract as
// PostgresStore. Used by tests.
type MemoryUsers struct {
	mu    sync.RWMutex
	users map[models.UserID]*models.User
	order []models.UserID
	now   func() time.Time
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{users: make(map[models.UserID]*models.User), now: time.Now}
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.SkillsOffered = slices.Clone(u.SkillsOffered)
	c.SkillsWanted = slices.Clone(u.SkillsWanted)
	return &c
}

func (m *MemoryUsers) CreateUser(_ context.Context, name, email, hashedPassword string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email = models.NormalizeEmail(email)
	for _, u := range m.users {
		if u.Email == email {
			return nil, errs.ErrUserExists
		}
	}
	now := m.now()
	u := &models.User{
		ID:            models.UserID(uuid.New().String()),
		Name:          strings.TrimSpace(name),
		Email:         email,
		Password:      hashedPassword,
		SkillsOffered: []string{},
		SkillsWanted:  []string{},
		Availability:  models.AvailabilityFlexible,
		IsPublic:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.users[u.ID] = u
	m.order = append(m.order, u.ID)
	return cloneUser(u), nil
}

func (m *MemoryUsers) FindByID(_ context.Context, id models.UserID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.lookup(id)
	if !ok {
		return nil, errs.ErrUserNotFound
	}
	return cloneUser(u), nil
}

// lookup accepts the same id spellings as PostgresStore. Callers hold mu.
func (m *MemoryUsers) lookup(id models.UserID) (*models.User, bool) {
	id, ok := canonicalUserID(id)
	if !ok {
		return nil, false
	}
	u, ok := m.users[id]
	return u, ok
}

func (m *MemoryUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	email = models.NormalizeEmail(email)
	for _, u := range m.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, errs.ErrUserNotFound
}

func (m *MemoryUsers) RefsByIDs(_ context.Context, ids []models.UserID) (map[models.UserID]models.UserRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	refs := make(map[models.UserID]models.UserRef, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			refs[id] = u.Ref()
		}
	}
	return refs, nil
}

func (m *MemoryUsers) ListPublic(_ context.Context, search string, page, limit int) ([]models.User, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(search))
	matches := func(u *models.User) bool {
		if needle == "" || strings.Contains(strings.ToLower(u.Name), needle) {
			return true
		}
		for _, s := range append(slices.Clone(u.SkillsOffered), u.SkillsWanted...) {
			if strings.Contains(strings.ToLower(s), needle) {
				return true
			}
		}
		return false
	}

	var all []models.User
	for i := len(m.order) - 1; i >= 0; i-- {
		u := m.users[m.order[i]]
		if u.IsPublic && matches(u) {
			all = append(all, *cloneUser(u))
		}
	}
	start := (page - 1) * limit
	if start >= len(all) {
		return nil, len(all), nil
	}
	end := min(start+limit, len(all))
	return all[start:end], len(all), nil
}

func (m *MemoryUsers) UpdateProfile(_ context.Context, id models.UserID, upd models.ProfileUpdate) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.lookup(id)
	if !ok {
		return nil, errs.ErrUserNotFound
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Location != nil {
		u.Location = *upd.Location
	}
	if upd.SkillsOffered != nil {
		u.SkillsOffered = slices.Clone(upd.SkillsOffered)
	}
	if upd.SkillsWanted != nil {
		u.SkillsWanted = slices.Clone(upd.SkillsWanted)
	}
	if upd.Availability != nil {
		u.Availability = *upd.Availability
	}
	if upd.IsPublic != nil {
		u.IsPublic = *upd.IsPublic
	}
	if upd.ProfilePhoto != nil {
		u.ProfilePhoto = *upd.ProfilePhoto
	}
	u.UpdatedAt = m.now()
	return cloneUser(u), nil
}

// MemoryLedger keeps swap requests in process. A single mutex makes the
// dedup check and insert, and the status compare-and-swap, atomic.
type MemoryLedger struct {
	mu    sync.Mutex
	reqs  map[models.RequestID]*models.SwapRequest
	order []models.RequestID
	users ProfileResolver
	now   func() time.Time
}

func NewMemoryLedger(users ProfileResolver) *MemoryLedger {
	return &MemoryLedger{
		reqs:  make(map[models.RequestID]*models.SwapRequest),
		users: users,
		now:   time.Now,
	}
}

func (l *MemoryLedger) Create(ctx context.Context, in models.NewSwapRequest) (*models.ResolvedRequest, error) {
	l.mu.Lock()
	for _, r := range l.reqs {
		if r.FromUser == in.FromUser && r.ToUser == in.ToUser && r.Status == models.StatusPending {
			l.mu.Unlock()
			return nil, errs.ErrConflict
		}
	}
	now := l.now()
	req := &models.SwapRequest{
		ID:           models.RequestID(uuid.New().String()),
		FromUser:     in.FromUser,
		ToUser:       in.ToUser,
		SkillOffered: in.SkillOffered,
		SkillWanted:  in.SkillWanted,
		Message:      in.Message,
		Status:       models.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	l.reqs[req.ID] = req
	l.order = append(l.order, req.ID)
	snapshot := *req
	l.mu.Unlock()

	return resolveCommitted(ctx, l.users, snapshot), nil
}

func (l *MemoryLedger) ListForUser(ctx context.Context, userID models.UserID) ([]models.ResolvedRequest, error) {
	l.mu.Lock()
	var mine []models.SwapRequest
	for i := len(l.order) - 1; i >= 0; i-- {
		r := l.reqs[l.order[i]]
		if r.FromUser == userID || r.ToUser == userID {
			mine = append(mine, *r)
		}
	}
	l.mu.Unlock()

	// order is insertion order; the stable sort only matters if the clock
	// went backwards.
	sort.SliceStable(mine, func(i, j int) bool { return mine[i].CreatedAt.After(mine[j].CreatedAt) })
	return resolve(ctx, l.users, mine)
}

func (l *MemoryLedger) SetStatus(ctx context.Context, id models.RequestID, actor models.UserID, status models.Status) (*models.ResolvedRequest, error) {
	l.mu.Lock()
	r, ok := l.reqs[id]
	if !ok {
		l.mu.Unlock()
		return nil, errs.ErrNotFound
	}
	if r.ToUser != actor {
		l.mu.Unlock()
		return nil, errs.ErrForbidden
	}
	if !models.CanTransition(r.Status, status) {
		l.mu.Unlock()
		return nil, errs.ErrInvalidTransition
	}
	r.Status = status
	r.UpdatedAt = l.now()
	snapshot := *r
	l.mu.Unlock()

	return resolveCommitted(ctx, l.users, snapshot), nil
}
