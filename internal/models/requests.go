package models

type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type SocialLoginRequest struct {
	Provider string `json:"provider" binding:"required,oneof=google github"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

type ResetPasswordRequest struct {
	Email    string `json:"email" binding:"required"`
	Code     string `json:"code" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type UpdateProfileRequest struct {
	Name string `json:"name" binding:"required"`
}

type PromoRequest struct {
	Code string `json:"code"`
}

type RemoteSessionRequest struct {
	OSVersion string `json:"os_version" binding:"required"`
	Language  string `json:"language" binding:"required"`
}
