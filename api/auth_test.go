package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"github.com/garnizeh/recruiter/api"
	"github.com/garnizeh/recruiter/internal/candidate"
	"github.com/garnizeh/recruiter/pkg/models"
	"github.com/garnizeh/recruiter/pkg/repository"
	"github.com/garnizeh/recruiter/pkg/repository/mock"
)

func storeUser(m *mock.Mocks, id, email, password string, roles ...string) {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	m.UserRepo.Put(&models.User{ID: id, Email: email, PasswordHash: string(hash), Roles: roles})
}

func TestAuthHandlers(t *testing.T) {
	secret := "testsecret"
	tokenDur := 1 * time.Hour

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		prepare    func(m *mock.Mocks)
		wantStatus int
		checkBody  func(t *testing.T, body []byte, m *mock.Mocks)
	}{
		{
			name:       "Signup_InvalidRequest",
			method:     http.MethodPost,
			path:       "/signup",
			body:       "not a json",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Signup_MissingFields_Name",
			method:     http.MethodPost,
			path:       "/signup",
			body:       map[string]string{"email": "alice@example.com", "password": "s3cret"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Signup_MissingFields_Email",
			method:     http.MethodPost,
			path:       "/signup",
			body:       map[string]string{"name": "Alice", "password": "s3cret"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Signup_ShortPassword",
			method:     http.MethodPost,
			path:       "/signup",
			body:       map[string]string{"name": "Alice", "email": "alice@example.com", "password": "pw"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Signup_Success",
			method:     http.MethodPost,
			path:       "/signup",
			body:       map[string]string{"name": "Alice", "email": "Alice@Example.com", "password": "s3cret"},
			wantStatus: http.StatusCreated,
			checkBody: func(t *testing.T, b []byte, m *mock.Mocks) {
				var ar struct {
					Token  string   `json:"token"`
					UserID string   `json:"user_id"`
					Roles  []string `json:"roles"`
				}
				if err := json.Unmarshal(b, &ar); err != nil {
					t.Fatalf("unmarshal token: %v", err)
				}
				if ar.Token == "" || ar.UserID == "" {
					t.Fatalf("empty token or user id: %s", b)
				}
				if len(ar.Roles) != 1 || ar.Roles[0] != models.RoleCandidate {
					t.Fatalf("expected candidate role, got %v", ar.Roles)
				}
				claims := &api.Claims{}
				if _, err := jwt.ParseWithClaims(ar.Token, claims, func(token *jwt.Token) (any, error) { return []byte(secret), nil }); err != nil {
					t.Fatalf("invalid token: %v", err)
				}
				if claims.UserID != ar.UserID || claims.Email != "alice@example.com" {
					t.Fatalf("unexpected claims: %+v", claims)
				}
				if m.ProfileRepo.Profiles() != 1 || m.ProfileRepo.Candidates() != 1 {
					t.Fatalf("expected profile and candidate to be created")
				}
			},
		},
		{
			name:   "Signup_DuplicateEmail",
			method: http.MethodPost,
			path:   "/signup",
			body:   map[string]string{"name": "Dup", "email": "dup@example.com", "password": "s3cret"},
			prepare: func(m *mock.Mocks) {
				storeUser(m, "u-dup", "dup@example.com", "whatever")
			},
			wantStatus: http.StatusConflict,
		},
		{
			name:   "Signup_StoreFailure",
			method: http.MethodPost,
			path:   "/signup",
			body:   map[string]string{"name": "Eve", "email": "eve@example.com", "password": "s3cret"},
			prepare: func(m *mock.Mocks) {
				m.UserRepo.CreateErr = fmt.Errorf("disk full")
			},
			wantStatus: http.StatusInternalServerError,
			checkBody: func(t *testing.T, b []byte, m *mock.Mocks) {
				if bytes.Contains(b, []byte("disk full")) {
					t.Fatalf("internal error leaked: %s", b)
				}
			},
		},
		{
			name:   "Signup_ProfileFailureRemovesUser",
			method: http.MethodPost,
			path:   "/signup",
			body:   map[string]string{"name": "Finn", "email": "finn@example.com", "password": "s3cret"},
			prepare: func(m *mock.Mocks) {
				m.ProfileRepo.CreateErr = fmt.Errorf("profiles unavailable")
			},
			wantStatus: http.StatusInternalServerError,
			checkBody: func(t *testing.T, b []byte, m *mock.Mocks) {
				if m.UserRepo.Users() != 0 || m.ProfileRepo.Profiles() != 0 {
					t.Fatalf("failed signup left users=%d profiles=%d", m.UserRepo.Users(), m.ProfileRepo.Profiles())
				}
			},
		},
		{
			name:   "Signup_CandidateFailureRemovesUserAndProfile",
			method: http.MethodPost,
			path:   "/signup",
			body:   map[string]string{"name": "Gail", "email": "gail@example.com", "password": "s3cret"},
			prepare: func(m *mock.Mocks) {
				m.ProfileRepo.CandidateErr = fmt.Errorf("candidates unavailable")
			},
			wantStatus: http.StatusInternalServerError,
			checkBody: func(t *testing.T, b []byte, m *mock.Mocks) {
				if m.UserRepo.Users() != 0 || m.ProfileRepo.Profiles() != 0 || m.ProfileRepo.Candidates() != 0 {
					t.Fatalf("failed signup left users=%d profiles=%d candidates=%d",
						m.UserRepo.Users(), m.ProfileRepo.Profiles(), m.ProfileRepo.Candidates())
				}
			},
		},
		{
			name:       "Signin_InvalidRequest",
			method:     http.MethodPost,
			path:       "/signin",
			body:       "not a json",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Signin_MissingFields_Password",
			method:     http.MethodPost,
			path:       "/signin",
			body:       map[string]string{"email": "missing@example.com"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Signin_MissingUser",
			method:     http.MethodPost,
			path:       "/signin",
			body:       map[string]string{"email": "missing@example.com", "password": "nop"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:   "Signin_Success",
			method: http.MethodPost,
			path:   "/signin",
			body:   map[string]string{"email": "bob@example.com", "password": "hunter2"},
			prepare: func(m *mock.Mocks) {
				storeUser(m, "u-bob", "bob@example.com", "hunter2", models.RoleRecruiter)
			},
			wantStatus: http.StatusOK,
			checkBody: func(t *testing.T, b []byte, m *mock.Mocks) {
				var ar struct {
					Token string   `json:"token"`
					Roles []string `json:"roles"`
				}
				if err := json.Unmarshal(b, &ar); err != nil {
					t.Fatalf("unmarshal token: %v", err)
				}
				if ar.Token == "" || len(ar.Roles) != 1 || ar.Roles[0] != models.RoleRecruiter {
					t.Fatalf("unexpected response: %s", b)
				}
			},
		},
		{
			name:   "Signin_WrongPassword",
			method: http.MethodPost,
			path:   "/signin",
			body:   map[string]string{"email": "c@example.com", "password": "wrongpw"},
			prepare: func(m *mock.Mocks) {
				storeUser(m, "u-c", "c@example.com", "rightpw")
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "Signout_OK",
			method:     http.MethodPost,
			path:       "/signout",
			wantStatus: http.StatusOK,
			checkBody: func(t *testing.T, b []byte, m *mock.Mocks) {
				if !bytes.Contains(b, []byte("signed out")) {
					t.Fatalf("unexpected body: %s", string(b))
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mocks := mock.NewMocks()
			if tt.prepare != nil {
				tt.prepare(mocks)
			}
			profiles := candidate.NewService(&repository.Repository{Profile: mocks.ProfileRepo}, nil, nil)
			handler := api.NewAuthHandler(mocks.UserRepo, profiles, secret, tokenDur)

			var bodyReader io.Reader
			switch b := tt.body.(type) {
			case nil:
			case string:
				bodyReader = bytes.NewReader([]byte(b))
			default:
				data, _ := json.Marshal(b)
				bodyReader = bytes.NewReader(data)
			}
			req := httptest.NewRequest(tt.method, tt.path, bodyReader)
			w := httptest.NewRecorder()

			switch tt.path {
			case "/signup":
				handler.Signup(w, req)
			case "/signin":
				handler.Signin(w, req)
			case "/signout":
				handler.Signout(w, req)
			default:
				t.Fatalf("unknown path %s", tt.path)
			}

			res := w.Result()
			defer res.Body.Close()
			data, _ := io.ReadAll(res.Body)
			if res.StatusCode != tt.wantStatus {
				t.Fatalf("%s: expected status %d got %d body=%s", tt.name, tt.wantStatus, res.StatusCode, string(data))
			}
			if tt.checkBody != nil {
				tt.checkBody(t, data, mocks)
			}
		})
	}
}

func TestSetRoles(t *testing.T) {
	mocks := mock.NewMocks()
	storeUser(mocks, "u-1", "one@example.com", "pw123456", models.RoleCandidate)
	profiles := candidate.NewService(&repository.Repository{Profile: mocks.ProfileRepo}, nil, nil)
	handler := api.NewAuthHandler(mocks.UserRepo, profiles, "s", time.Hour)

	r := mux.NewRouter()
	r.HandleFunc("/v1/users/{id}/roles", handler.SetRoles).Methods(http.MethodPut)

	tests := []struct {
		name string
		id   string
		body string
		want int
	}{
		{"unknown role", "u-1", `{"roles":["Boss"]}`, http.StatusBadRequest},
		{"empty roles", "u-1", `{"roles":[]}`, http.StatusBadRequest},
		{"missing user", "u-404", `{"roles":["Recruiter"]}`, http.StatusNotFound},
		{"ok", "u-1", `{"roles":["Recruiter","Candidate"]}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/v1/users/"+tt.id+"/roles", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("expected %d got %d body=%s", tt.want, w.Code, w.Body.String())
			}
		})
	}

	u, _ := mocks.UserRepo.GetUserByID(t.Context(), "u-1")
	if !u.HasRole(models.RoleRecruiter) {
		t.Fatalf("roles not updated: %v", u.Roles)
	}
}
