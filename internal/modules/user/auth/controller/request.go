package controller

type UserSignUpRequest struct {
	Name     string `json:"name" validate:"omitempty,max=100" example:"Marta Puig"`
	Email    string `json:"email" validate:"required,email" example:"marta@example.com"`
	Password string `json:"password" validate:"required,min=8,max=72" example:"SuperPassword123"`
}

type UserSignInRequest struct {
	Email    string `json:"email" validate:"required,email" example:"marta@example.com"`
	Password string `json:"password" validate:"required" example:"SuperPassword123"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}
