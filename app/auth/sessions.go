package auth

import (
	"net/http"
	"time"

	"bitwise74/marketplace-auth/app/status"
	"bitwise74/marketplace-auth/internal"
	"bitwise74/marketplace-auth/pkg/middleware"
	"bitwise74/marketplace-auth/pkg/response"

	"github.com/gin-gonic/gin"
)

// session is a signed in device. The bearer token itself is never listed.
type session struct {
	ID           int64     `json:"id"`
	Fingerprint  string    `json:"fingerprint"`
	IPAddress    string    `json:"ipAddress"`
	UserAgent    string    `json:"userAgent"`
	CreatedAt    time.Time `json:"createdAt"`
	LastAccessAt time.Time `json:"lastAccessAt"`
	ExpireAt     time.Time `json:"expireAt"`
	Expired      bool      `json:"expired"`
}

// ListSessions returns every session issued to the caller, oldest first
func ListSessions(c *gin.Context, d *internal.Deps) {
	tokens, err := d.Sessions.ListByUser(c.Request.Context(), middleware.Identity(c).UserID)
	if err != nil {
		status.Fail(c, err, "Failed to list sessions")
		return
	}

	now := time.Now()
	out := make([]session, 0, len(tokens))

	for _, t := range tokens {
		out = append(out, session{
			ID:           t.ID,
			Fingerprint:  t.Fingerprint,
			IPAddress:    t.IPAddress,
			UserAgent:    t.UserAgent,
			CreatedAt:    t.CreatedAt,
			LastAccessAt: t.LastAccessAt,
			ExpireAt:     t.ExpireAt,
			Expired:      !t.ExpireAt.After(now),
		})
	}

	response.OK(c, http.StatusOK, out)
}
