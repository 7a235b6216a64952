package model

type RegisterRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type RevokeRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type AddRoleRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}
