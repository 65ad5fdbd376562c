package user

import "github.com/gin-gonic/gin"

const contextKey = "user"

// SetContext stores the authenticated user on the request.
func SetContext(c *gin.Context, u *User) {
	c.Set(contextKey, u)
}

// FromContext retrieves the authenticated user, if any.
func FromContext(c *gin.Context) (*User, bool) {
	value, exists := c.Get(contextKey)
	if !exists {
		return nil, false
	}
	u, ok := value.(*User)
	return u, ok && u != nil
}
