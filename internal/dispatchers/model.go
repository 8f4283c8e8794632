package dispatchers

import "time"

// Dispatcher is an operator account. It exists so mutating operations carry
// an acting identity for audit fields; authorization policy lives elsewhere.
type Dispatcher struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	FacilityID   string    `json:"facility_id"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// RegisterRequest is the body for POST /dispatchers/register.
type RegisterRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	FacilityID string `json:"facility_id"`
	Password   string `json:"password"`
}

// LoginRequest is the body for POST /dispatchers/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned on register / login.
type AuthResponse struct {
	Token      string      `json:"token"`
	Dispatcher *Dispatcher `json:"dispatcher,omitempty"`
}
