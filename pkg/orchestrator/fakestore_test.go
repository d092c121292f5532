package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ggnet/ggnetd/pkg/models"
	"github.com/ggnet/ggnetd/pkg/store"
)

var _ store.Store = (*fakeStore)(nil)

// fakeStore is an in-memory store.Store used to exercise the orchestrator
// without a real database, grounded on the teacher's pkg/metadata/store/memory
// in-memory test double.
type fakeStore struct {
	mu       sync.Mutex
	machines map[string]*models.Machine
	images   map[string]*models.Image
	targets  map[string]*models.Target
	sessions map[string]*models.Session
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		machines: map[string]*models.Machine{},
		images:   map[string]*models.Image{},
		targets:  map[string]*models.Target{},
		sessions: map[string]*models.Session{},
	}
}

func (f *fakeStore) putMachine(m *models.Machine) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	f.machines[m.ID] = m
}

func (f *fakeStore) putImage(img *models.Image) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if img.ID == "" {
		img.ID = uuid.NewString()
	}
	f.images[img.ID] = img
}

// --- UserStore (unused by the orchestrator; minimal stubs) ---

func (f *fakeStore) GetUser(ctx context.Context, username string) (*models.User, error) {
	return nil, models.ErrUserNotFound
}
func (f *fakeStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return nil, models.ErrUserNotFound
}
func (f *fakeStore) ListUsers(ctx context.Context) ([]*models.User, error) { return nil, nil }
func (f *fakeStore) CreateUser(ctx context.Context, user *models.User) (string, error) {
	return "", nil
}
func (f *fakeStore) UpdateUser(ctx context.Context, user *models.User) error { return nil }
func (f *fakeStore) DeleteUser(ctx context.Context, username string) error  { return nil }
func (f *fakeStore) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	return nil
}
func (f *fakeStore) RecordLoginSuccess(ctx context.Context, username string, at time.Time) error {
	return nil
}
func (f *fakeStore) RecordLoginFailure(ctx context.Context, username string, at time.Time, threshold int, lockDuration time.Duration) error {
	return nil
}

// --- ImageStore ---

func (f *fakeStore) GetImage(ctx context.Context, id string) (*models.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	img, ok := f.images[id]
	if !ok {
		return nil, models.ErrImageNotFound
	}
	return img, nil
}
func (f *fakeStore) ListImages(ctx context.Context, status string) ([]*models.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Image
	for _, img := range f.images {
		if status == "" || img.Status == status {
			out = append(out, img)
		}
	}
	return out, nil
}
func (f *fakeStore) CreateImage(ctx context.Context, image *models.Image) (string, error) {
	f.putImage(image)
	return image.ID, nil
}
func (f *fakeStore) UpdateImage(ctx context.Context, image *models.Image) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images[image.ID] = image
	return nil
}
func (f *fakeStore) SoftDeleteImage(ctx context.Context, id string) error { return nil }
func (f *fakeStore) ClaimImageForConversion(ctx context.Context, claimerID string, batchSize int) ([]*models.Image, error) {
	return nil, nil
}
func (f *fakeStore) ReleaseStuckConversions(ctx context.Context, olderThan time.Time) (int64, error) {
	return 0, nil
}
func (f *fakeStore) CompleteConversion(ctx context.Context, id, claimerID, filePath string, virtualSizeBytes int64, processingLog string) error {
	return nil
}
func (f *fakeStore) FailConversion(ctx context.Context, id, claimerID, errMessage, processingLog string) error {
	return nil
}
func (f *fakeStore) RetryImage(ctx context.Context, id string) error { return nil }

// --- MachineStore ---

func (f *fakeStore) GetMachine(ctx context.Context, id string) (*models.Machine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.machines[id]
	if !ok {
		return nil, models.ErrMachineNotFound
	}
	return m, nil
}
func (f *fakeStore) GetMachineByMAC(ctx context.Context, mac string) (*models.Machine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.machines {
		if m.MAC == mac {
			return m, nil
		}
	}
	return nil, models.ErrMachineNotFound
}
func (f *fakeStore) ListMachines(ctx context.Context, status string) ([]*models.Machine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Machine
	for _, m := range f.machines {
		if status == "" || m.Status == status {
			out = append(out, m)
		}
	}
	return out, nil
}
func (f *fakeStore) CreateMachine(ctx context.Context, machine *models.Machine) (string, error) {
	f.putMachine(machine)
	return machine.ID, nil
}
func (f *fakeStore) UpdateMachine(ctx context.Context, machine *models.Machine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.machines[machine.ID] = machine
	return nil
}
func (f *fakeStore) DeleteMachine(ctx context.Context, id string) error { return nil }
func (f *fakeStore) RecordHeartbeat(ctx context.Context, mac string, at time.Time, report *models.HardwareReport) error {
	return nil
}
func (f *fakeStore) IncrementBootCount(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.machines[id]; ok {
		m.BootCount++
	}
	return nil
}

// --- TargetStore ---

func (f *fakeStore) GetTarget(ctx context.Context, id string) (*models.Target, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.targets[id]
	if !ok {
		return nil, models.ErrTargetNotFound
	}
	return t, nil
}
func (f *fakeStore) GetTargetByMachine(ctx context.Context, machineID string) (*models.Target, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.targets {
		if t.MachineID == machineID {
			return t, nil
		}
	}
	return nil, models.ErrTargetNotFound
}
func (f *fakeStore) ListTargets(ctx context.Context) ([]*models.Target, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Target
	for _, t := range f.targets {
		out = append(out, t)
	}
	return out, nil
}
func (f *fakeStore) CreateTarget(ctx context.Context, target *models.Target) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if target.ID == "" {
		target.ID = uuid.NewString()
	}
	f.targets[target.ID] = target
	return target.ID, nil
}
func (f *fakeStore) UpdateTargetStatus(ctx context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.targets[id]
	if !ok {
		return models.ErrTargetNotFound
	}
	t.Status = status
	return nil
}
func (f *fakeStore) DeleteTarget(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.targets[id]; !ok {
		return models.ErrTargetNotFound
	}
	delete(f.targets, id)
	return nil
}

// --- SessionStore ---

func (f *fakeStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	return s, nil
}
func (f *fakeStore) GetLiveSessionByMachine(ctx context.Context, machineID string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.MachineID == machineID && models.SessionStatus(s.Status).IsLive() {
			return s, nil
		}
	}
	return nil, models.ErrSessionNotFound
}
func (f *fakeStore) ListSessions(ctx context.Context, status string) ([]*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Session
	for _, s := range f.sessions {
		if status == "" || s.Status == status {
			out = append(out, s)
		}
	}
	return out, nil
}
func (f *fakeStore) CreateSession(ctx context.Context, session *models.Session) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.MachineID == session.MachineID && models.SessionStatus(s.Status).IsLive() {
			return "", models.ErrSessionConflict
		}
	}
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.SessionID == "" {
		session.SessionID = uuid.NewString()
	}
	now := time.Now()
	session.CreatedAt = now
	f.sessions[session.SessionID] = session
	return session.SessionID, nil
}
func (f *fakeStore) ActivateSession(ctx context.Context, sessionID string, startedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok {
		return models.ErrSessionNotFound
	}
	s.Status = string(models.SessionStatusActive)
	s.StartedAt = &startedAt
	return nil
}
func (f *fakeStore) StopSession(ctx context.Context, sessionID string, endedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok {
		return models.ErrSessionNotFound
	}
	s.Status = string(models.SessionStatusStopped)
	s.EndedAt = &endedAt
	return nil
}
func (f *fakeStore) FailSession(ctx context.Context, sessionID, errMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok {
		return models.ErrSessionNotFound
	}
	s.Status = string(models.SessionStatusError)
	s.ErrorMessage = errMessage
	return nil
}
func (f *fakeStore) TouchSession(ctx context.Context, sessionID string, at time.Time, clientIP string, bytesTransferred int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok {
		return models.ErrSessionNotFound
	}
	s.LastActivity = &at
	s.ClientIP = clientIP
	s.BytesTransferred = bytesTransferred
	return nil
}
func (f *fakeStore) ListStaleSessions(ctx context.Context, olderThan time.Time) ([]*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Session
	for _, s := range f.sessions {
		if !models.SessionStatus(s.Status).IsLive() {
			continue
		}
		last := s.CreatedAt
		if s.LastActivity != nil {
			last = *s.LastActivity
		}
		if last.Before(olderThan) {
			out = append(out, s)
		}
	}
	return out, nil
}

// --- AdminStore / HealthStore / UnitOfWork ---

func (f *fakeStore) EnsureAdminUser(ctx context.Context) (string, error) { return "", nil }
func (f *fakeStore) Healthcheck(ctx context.Context) error               { return nil }
func (f *fakeStore) Close() error                                       { return nil }

func (f *fakeStore) WithTx(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(f)
}
