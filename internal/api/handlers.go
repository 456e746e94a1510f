package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"attendance/internal/attendance"
	"attendance/internal/auth"
	"attendance/internal/credits"
	"attendance/internal/metrics"
	"attendance/internal/seed"
)

func (h *handler) health(c *gin.Context) {
	healthy := h.deps.DatabaseHealthy == nil || h.deps.DatabaseHealthy(c.Request.Context())
	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "disconnected"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "connected"})
}

type loginForm struct {
	Username string `form:"username" json:"username" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

// login accepts the OAuth2 password form. Both failure causes produce the same response.
func (h *handler) login(c *gin.Context) {
	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		badRequest(c, "username and password are required")
		return
	}
	id, err := h.deps.Verifier.Verify(c.Request.Context(), form.Username, form.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			metrics.LoginAttempts.WithLabelValues("invalid").Inc()
		} else {
			metrics.LoginAttempts.WithLabelValues("error").Inc()
		}
		h.writeError(c, err)
		return
	}
	tok, err := h.deps.Tokens.Issue(id)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		h.writeError(c, err)
		return
	}
	metrics.LoginAttempts.WithLabelValues("success").Inc()
	c.JSON(http.StatusOK, gin.H{
		"access_token": tok.AccessToken,
		"token_type":   tok.TokenType,
		"expires_in":   int(h.deps.Tokens.TTL() / time.Second),
		"user_type":    id.Role,
	})
}

func (h *handler) seedData(c *gin.Context) {
	f, err := seed.LoadFixture(h.deps.SeedFile)
	if err != nil {
		h.writeError(c, err)
		return
	}
	res, err := h.deps.Seeder.Apply(c.Request.Context(), f)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Sample data seeded successfully", "result": res})
}

func (h *handler) me(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	c.JSON(http.StatusOK, gin.H{
		"email":        claims.Subject,
		"user_type":    claims.Role,
		"admission_no": claims.AdmissionNo,
		"expires_at":   claims.ExpiresAt,
	})
}

func (h *handler) listStudents(c *gin.Context) {
	students, err := h.deps.Attendance.ListStudents(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, students)
}

func (h *handler) dashboard(c *gin.Context) {
	d, err := h.deps.Attendance.ClassDashboard(c.Request.Context(), c.Param("class_name"), c.Query("date"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *handler) manualAttendance(c *gin.Context) {
	var req attendance.ManualRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	claims, _ := auth.ClaimsFrom(c)
	res, err := h.deps.Attendance.MarkManual(c.Request.Context(), claims.Subject, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handler) autoAttendance(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	rec, err := h.deps.Attendance.MarkAuto(c.Request.Context(), claims.Subject, c.Query("admission_no"), c.Query("session"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Attendance marked automatically", "record": rec})
}

func (h *handler) viewAttendance(c *gin.Context) {
	adm := c.Param("admission_no")
	claims, _ := auth.ClaimsFrom(c)
	if err := auth.AuthorizeStudentResource(claims, adm); err != nil {
		metrics.AuthDenials.WithLabelValues("forbidden").Inc()
		h.writeError(c, err)
		return
	}
	view, err := h.deps.Attendance.StudentView(c.Request.Context(), adm)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handler) staffActions(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	a, err := h.deps.Attendance.StaffActions(c.Request.Context(), claims.Subject, c.Param("admission_no"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

type balanceView struct {
	credits.Balance
	Remaining int `json:"remaining"`
}

func viewOf(b credits.Balance) balanceView {
	return balanceView{Balance: b, Remaining: b.Remaining()}
}

func (h *handler) myCredits(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	ctx := c.Request.Context()
	bal, err := h.deps.Ledger.Balance(ctx, claims.Subject)
	if err != nil {
		h.writeError(c, err)
		return
	}
	history, err := h.deps.Ledger.History(ctx, claims.Subject)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if history == nil {
		history = []credits.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"balance": viewOf(bal), "history": history})
}

// resetCredits is the department-head replenishment trigger. The target must be a staff account.
func (h *handler) resetCredits(c *gin.Context) {
	ctx := c.Request.Context()
	staffID := auth.NormalizeIdentifier(c.Param("staff_id"))
	u, err := h.deps.Users.Get(ctx, staffID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if u.Role != auth.RoleStaff {
		badRequest(c, "credits can only be reset for staff accounts")
		return
	}
	bal, err := h.deps.Ledger.Reset(ctx, u.Email)
	if err != nil {
		metrics.CreditOps.WithLabelValues("reset", "error").Inc()
		h.writeError(c, err)
		return
	}
	metrics.CreditOps.WithLabelValues("reset", "ok").Inc()
	hod, _ := auth.ClaimsFrom(c)
	h.log.Info().Str("staff", u.Email).Str("by", hod.Subject).Int("period", bal.Period).Msg("credits replenished")
	c.JSON(http.StatusOK, gin.H{"message": "Credits reset", "balance": viewOf(bal)})
}
