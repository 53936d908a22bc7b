package dto

// RegisterRequest 注册请求
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email,max=120"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	FullName string `json:"full_name,omitempty" binding:"omitempty,max=100"`
}

// RegisterResponse 注册响应
type RegisterResponse struct {
	UserID int64 `json:"user_id"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresIn int          `json:"expires_in"` // 秒
	User      *UserProfile `json:"user"`
}

// UserProfile 用户信息
type UserProfile struct {
	ID            int64  `json:"id"`
	Email         string `json:"email"`
	FullName      string `json:"full_name,omitempty"`
	Role          string `json:"role"`
	TotalAnalyses int    `json:"total_analyses"`
	CreatedAt     string `json:"created_at"`
}
