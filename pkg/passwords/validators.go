package passwords

type ForgotPasswordPayload struct {
	Email string `json:"email" mod:"trim" validate:"required,email"`
}

type ResetPasswordPayload struct {
	Token       string `json:"token" mod:"trim" validate:"required,len=64"`
	NewPassword string `json:"new_password" validate:"required"`
}

type ChangePasswordPayload struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

type ValidatePasswordPayload struct {
	Password string `json:"password" validate:"required"`
}

type messageResponse struct {
	Message string `json:"message"`
}
