package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"focusflow/internal/session"
)

type credentialsForm struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

type telegramForm struct {
	ChatID *int64 `json:"chat_id"`
}

type sessionResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Identity  session.Identity `json:"identity"`
}

func (s *server) loginPage(c *gin.Context) {
	if identity(c).Status == session.StatusPresent {
		c.Redirect(http.StatusFound, "/")
		return
	}
	c.HTML(http.StatusOK, "login.html", gin.H{"Mode": "login"})
}

func (s *server) signupPage(c *gin.Context) {
	if identity(c).Status == session.StatusPresent {
		c.Redirect(http.StatusFound, "/")
		return
	}
	c.HTML(http.StatusOK, "login.html", gin.H{"Mode": "signup"})
}

func (s *server) loginSubmit(c *gin.Context) {
	s.authSubmit(c, "login", s.Sessions.Login)
}

func (s *server) signupSubmit(c *gin.Context) {
	s.authSubmit(c, "signup", s.Sessions.Signup)
}

type authFunc func(ctx context.Context, email, password string) (*session.Session, error)

func (s *server) authSubmit(c *gin.Context, mode string, auth authFunc) {
	var form credentialsForm
	if err := c.ShouldBind(&form); err != nil {
		c.HTML(http.StatusBadRequest, "login.html", gin.H{"Mode": mode, "Error": "Invalid form submission."})
		return
	}

	sess, err := auth(c.Request.Context(), form.Email, form.Password)
	if err != nil {
		_ = c.Error(err)
		c.HTML(statusFor(err), "login.html", gin.H{"Mode": mode, "Email": form.Email, "Error": errorMessage(err)})
		return
	}

	s.setSessionCookie(c, sess)
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *server) logoutSubmit(c *gin.Context) {
	if err := s.Sessions.Logout(c.Request.Context(), requestToken(c)); err != nil {
		_ = c.Error(err)
	}
	s.clearSessionCookie(c)
	c.Redirect(http.StatusSeeOther, "/login")
}

func (s *server) apiSignup(c *gin.Context) {
	s.apiAuth(c, http.StatusCreated, s.Sessions.Signup)
}

func (s *server) apiLogin(c *gin.Context) {
	s.apiAuth(c, http.StatusOK, s.Sessions.Login)
}

func (s *server) apiAuth(c *gin.Context, status int, auth authFunc) {
	var form credentialsForm
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, err)
		return
	}
	sess, err := auth(c.Request.Context(), form.Email, form.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(status, sessionResponse{Token: sess.Token, ExpiresAt: sess.ExpiresAt, Identity: sess.Identity})
}

func (s *server) apiLogout(c *gin.Context) {
	if err := s.Sessions.Logout(c.Request.Context(), requestToken(c)); err != nil {
		respondError(c, err)
		return
	}
	s.clearSessionCookie(c)
	c.Status(http.StatusNoContent)
}

func (s *server) me(c *gin.Context) {
	c.JSON(http.StatusOK, identity(c))
}

func (s *server) setTelegram(c *gin.Context) {
	var form telegramForm
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.Profiles.SetTelegramChatID(c.Request.Context(), identity(c).UserID(), form.ChatID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat_id": form.ChatID})
}

func (s *server) setSessionCookie(c *gin.Context, sess *session.Session) {
	maxAge := int(time.Until(sess.ExpiresAt).Seconds())
	if s.CookieTTL > 0 && maxAge <= 0 {
		maxAge = int(s.CookieTTL.Seconds())
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, sess.Token, maxAge, "/", "", s.SecureCookies, true)
}

func (s *server) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, "", -1, "/", "", s.SecureCookies, true)
}
