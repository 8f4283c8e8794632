package dispatchers

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"dispatch-service/pkg/jwt"
)

// Service contains dispatcher account logic.
type Service struct {
	db *pgxpool.Pool
}

// NewService creates a dispatcher service backed by the given pool.
func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

// NormalizeEmail canonicalises an email for storage and lookup, so the same
// address with different casing or stray whitespace maps to one account.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new dispatcher account scoped to a facility and
// returns a JWT carrying that scope.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	email := NormalizeEmail(req.Email)

	var exists bool
	_ = s.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM dispatchers WHERE email=$1)", email).Scan(&exists)
	if exists {
		return nil, errors.New("email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	_, err = s.db.Exec(ctx,
		`INSERT INTO dispatchers (id,name,email,phone,facility_id,password_hash) VALUES ($1,$2,$3,$4,$5,$6)`,
		id, req.Name, email, req.Phone, req.FacilityID, string(hash))
	if err != nil {
		return nil, err
	}

	token, err := jwt.Generate(id, email, "dispatcher", req.FacilityID)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		Token: token,
		Dispatcher: &Dispatcher{
			ID: id, Name: req.Name, Email: email,
			Phone: req.Phone, FacilityID: req.FacilityID,
		},
	}, nil
}

// Login authenticates a dispatcher and returns a JWT.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var d Dispatcher
	var hash string
	err := s.db.QueryRow(ctx,
		`SELECT id,name,email,phone,facility_id,password_hash,created_at FROM dispatchers WHERE email=$1`,
		NormalizeEmail(req.Email)).
		Scan(&d.ID, &d.Name, &d.Email, &d.Phone, &d.FacilityID, &hash, &d.CreatedAt)
	if err != nil {
		return nil, errors.New("invalid credentials")
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
		return nil, errors.New("invalid credentials")
	}

	token, err := jwt.Generate(d.ID, d.Email, "dispatcher", d.FacilityID)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{Token: token, Dispatcher: &d}, nil
}
