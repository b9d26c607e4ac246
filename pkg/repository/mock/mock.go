package mock

import (
	"context"
	"strings"

	"github.com/garnizeh/recruiter/pkg/models"
)

// Test helpers and mocks
type Mocks struct {
	UserRepo    *mockUserRepo
	ProfileRepo *mockProfileRepo
}

func NewMocks() *Mocks {
	return &Mocks{
		UserRepo:    &mockUserRepo{users: map[string]*models.User{}},
		ProfileRepo: &mockProfileRepo{profiles: map[string]*models.UserProfile{}, candidates: map[string]*models.Candidate{}},
	}
}

type mockUserRepo struct {
	users     map[string]*models.User
	CreateErr error
	GetErr    error
}

func (m *mockUserRepo) CreateUser(ctx context.Context, u *models.User) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *mockUserRepo) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *mockUserRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) UpdateUserRoles(ctx context.Context, id string, roles []string) error {
	if u, ok := m.users[id]; ok {
		u.Roles = roles
	}
	return nil
}

func (m *mockUserRepo) DeleteUser(ctx context.Context, id string) error {
	delete(m.users, id)
	return nil
}

// Users returns the number of stored users.
func (m *mockUserRepo) Users() int { return len(m.users) }

// Put stores u directly, bypassing CreateErr.
func (m *mockUserRepo) Put(u *models.User) {
	cp := *u
	m.users[u.ID] = &cp
}

type mockProfileRepo struct {
	profiles   map[string]*models.UserProfile
	candidates map[string]*models.Candidate
	CreateErr  error
	// CandidateErr fails CreateCandidate only.
	CandidateErr error
}

func (m *mockProfileRepo) CreateProfile(ctx context.Context, p *models.UserProfile) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	cp := *p
	m.profiles[p.ID] = &cp
	return nil
}

func (m *mockProfileRepo) GetProfile(ctx context.Context, id string) (*models.UserProfile, error) {
	if p, ok := m.profiles[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (m *mockProfileRepo) GetProfileByUserID(ctx context.Context, userID string) (*models.UserProfile, error) {
	for _, p := range m.profiles {
		if p.UserID == userID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockProfileRepo) UpdateProfile(ctx context.Context, p *models.UserProfile) error {
	cp := *p
	m.profiles[p.ID] = &cp
	return nil
}

func (m *mockProfileRepo) DeleteProfile(ctx context.Context, id string) error {
	delete(m.profiles, id)
	return nil
}

func (m *mockProfileRepo) CreateCandidate(ctx context.Context, c *models.Candidate) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	if m.CandidateErr != nil {
		return m.CandidateErr
	}
	cp := *c
	m.candidates[c.ID] = &cp
	return nil
}

func (m *mockProfileRepo) GetCandidate(ctx context.Context, id string) (*models.Candidate, error) {
	if c, ok := m.candidates[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (m *mockProfileRepo) GetCandidateByProfileID(ctx context.Context, profileID string) (*models.Candidate, error) {
	for _, c := range m.candidates {
		if c.UserProfileID == profileID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockProfileRepo) UpdateCandidateCV(ctx context.Context, id string, fileID *string) error {
	if c, ok := m.candidates[id]; ok {
		c.CvFileID = fileID
	}
	return nil
}

// Profiles returns the number of stored profiles.
func (m *mockProfileRepo) Profiles() int { return len(m.profiles) }

// Candidates returns the number of stored candidates.
func (m *mockProfileRepo) Candidates() int { return len(m.candidates) }
