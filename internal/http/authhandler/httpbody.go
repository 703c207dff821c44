package authhandler

type RegisterBody struct {
	Name     string `json:"name"     binding:"required,max=100" example:"Ada"`
	Email    string `json:"email"    binding:"required,email"   example:"ada@example.com"`
	Password string `json:"password" binding:"required,min=6"   example:"hunter22"`
} // @name RegisterRequest

type LoginBody struct {
	Email    string `json:"email"    binding:"required,email" example:"ada@example.com"`
	Password string `json:"password" binding:"required"       example:"hunter22"`
} // @name LoginRequest

type ErrorResponse struct {
	Error string `json:"error"`
} // @name AuthErrorResponse
