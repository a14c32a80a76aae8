package http

import (
	"net/http"
	"strings"
	"time"

	apperrors "budget-bubble-backend/internal/common/errors"
	"budget-bubble-backend/internal/common/middleware"
	"budget-bubble-backend/internal/common/validation"
	currency "budget-bubble-backend/internal/features/currency/models"
	profile "budget-bubble-backend/internal/features/profile/models"
	profilesvc "budget-bubble-backend/internal/features/profile/service"
	"budget-bubble-backend/internal/features/session/models"
	"budget-bubble-backend/internal/features/session/service"

	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	registry *service.Registry
	now      func() time.Time
}

func NewSessionHandler(registry *service.Registry) *SessionHandler {
	return &SessionHandler{registry: registry, now: time.Now}
}

func (h *SessionHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("")
	api.Use(middleware.RequireUser())
	{
		api.POST("/session", h.Login)
		api.DELETE("/session", h.Logout)
		api.GET("/state", h.GetState)
		api.GET("/members", h.GetMembers)
		api.PUT("/goal", h.SetGoal)
		api.PUT("/currency", h.SetCurrency)
		api.PUT("/theme", h.SetTheme)
		api.PUT("/username", h.SetUsername)
		api.POST("/ghost/toggle", h.ToggleGhost)
		api.POST("/categories", h.AddCategory)
		api.DELETE("/categories/:name", h.RemoveCategory)
		api.POST("/transactions", h.AddTransaction)
		api.POST("/reset", h.ResetData)
		api.POST("/friends/:id", h.AddFriend)
		api.DELETE("/friends/:id", h.RemoveFriend)
		api.POST("/cheers/:id", h.SendCheer)
		api.GET("/celebrations", h.GetCelebrations)
	}
}

// @Summary Open session
// @Description Load (or create) the caller's profile and start live subscriptions
// @Tags session
// @Produce json
// @Param X-User-ID header string true "User ID"
// @Success 200 {object} models.StateView
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 502 {object} middleware.ErrorResponse "Remote document service failed"
// @Router /session [post]
func (h *SessionHandler) Login(c *gin.Context) {
	s, err := h.registry.Login(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		middleware.SendError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.state(s))
}

// @Summary Close session
// @Description Cancel every subscription and flush pending writes
// @Tags session
// @Param X-User-ID header string true "User ID"
// @Success 204
// @Failure 404 {object} middleware.ErrorResponse
// @Router /session [delete]
func (h *SessionHandler) Logout(c *gin.Context) {
	if err := h.registry.Logout(middleware.GetUserID(c)); err != nil {
		middleware.SendError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Get state
// @Tags state
// @Produce json
// @Param X-User-ID header string true "User ID"
// @Success 200 {object} models.StateView
// @Failure 404 {object} middleware.ErrorResponse
// @Router /state [get]
func (h *SessionHandler) GetState(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.state(s))
}

// @Summary Get friends
// @Description Friends' progress compared with the caller, in the caller's display currency
// @Tags friends
// @Produce json
// @Param X-User-ID header string true "User ID"
// @Success 200 {object} models.MembersView
// @Failure 404 {object} middleware.ErrorResponse
// @Router /members [get]
func (h *SessionHandler) GetMembers(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	view := service.BuildMembers(s.Store().Profile(), s.Friends().Members(), h.registry.Converter())
	c.JSON(http.StatusOK, view)
}

// @Summary Set goal
// @Description Amount is in the goal currency, which defaults to the display currency
// @Tags state
// @Accept json
// @Produce json
// @Param X-User-ID header string true "User ID"
// @Param request body models.GoalRequest true "Goal"
// @Success 200 {object} models.Result
// @Failure 400 {object} middleware.ErrorResponse
// @Router /goal [put]
func (h *SessionHandler) SetGoal(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req models.GoalRequest
	if !bind(c, &req) {
		return
	}

	amount, err := validation.ParseGoalAmount(string(req.Amount))
	if err != nil {
		h.result(c, s, false)
		return
	}
	goalCurrency := currency.Code(strings.ToUpper(strings.TrimSpace(req.Currency)))
	from := goalCurrency
	if from == "" {
		from = s.Store().Profile().Currency
	}

	in := profilesvc.GoalInput{
		Amount:   h.registry.Converter().ToCanonical(amount, from),
		Currency: goalCurrency,
		Title:    req.Title,
	}
	if strings.TrimSpace(req.Deadline) != "" {
		in.Deadline = &req.Deadline
	}
	h.result(c, s, s.Store().SetGoal(in))
}

// @Summary Set display currency
// @Tags state
// @Accept json
// @Produce json
// @Param X-User-ID header string true "User ID"
// @Param request body models.CurrencyRequest true "Currency"
// @Success 200 {object} models.Result
// @Router /currency [put]
func (h *SessionHandler) SetCurrency(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req models.CurrencyRequest
	if !bind(c, &req) {
		return
	}
	code, valid := currency.ParseCode(req.Currency)
	h.result(c, s, valid && s.Store().SetCurrency(code))
}

// @Summary Set theme
// @Tags state
// @Accept json
// @Produce json
// @Param X-User-ID header string true "User ID"
// @Param request body models.ThemeRequest true "Theme"
// @Success 200 {object} models.Result
// @Router /theme [put]
func (h *SessionHandler) SetTheme(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req models.ThemeRequest
	if !bind(c, &req) {
		return
	}
	theme := profile.Theme(strings.ToLower(strings.TrimSpace(req.Theme)))
	h.result(c, s, s.Store().SetTheme(theme))
}

// @Summary Set username
// @Tags state
// @Accept json
// @Produce json
// @Param X-User-ID header string true "User ID"
// @Param request body models.UsernameRequest true "Username"
// @Success 200 {object} models.Result
// @Router /username [put]
func (h *SessionHandler) SetUsername(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req models.UsernameRequest
	if !bind(c, &req) {
		return
	}
	h.result(c, s, s.Store().SetUsername(req.Username))
}

// @Summary Toggle ghost mode
// @Description Ghost mode hides absolute amounts from friends
// @Tags state
// @Produce json
// @Param X-User-ID header string true "User ID"
// @Success 200 {object} models.GhostResponse
// @Router /ghost/toggle [post]
func (h *SessionHandler) ToggleGhost(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	ghost := s.Store().ToggleGhost()
	c.JSON(http.StatusOK, models.GhostResponse{IsGhost: ghost, State: h.state(s)})
}

// @Summary Add category
// @Tags categories
// @Accept json
// @Produce json
// @Param X-User-ID header string true "User ID"
// @Param request body models.CategoryRequest true "Category"
// @Success 200 {object} models.Result
// @Router /categories [post]
func (h *SessionHandler) AddCategory(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req models.CategoryRequest
	if !bind(c, &req) {
		return
	}
	h.result(c, s, s.Store().AddCategory(req.Name))
}

// @Summary Remove category
// @Description Transactions already tagged with the category keep it
// @Tags categories
// @Produce json
// @Param X-User-ID header string true "User ID"
// @Param name path string true "Category name"
// @Success 200 {object} models.Result
// @Router /categories/{name} [delete]
func (h *SessionHandler) RemoveCategory(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	h.result(c, s, s.Store().RemoveCategory(c.Param("name")))
}

// @Summary Add transaction
// @Description Amount is in the display currency and stored in the canonical currency
// @Tags transactions
// @Accept json
// @Produce json
// @Param X-User-ID header string true "User ID"
// @Param request body models.TransactionRequest true "Transaction"
// @Success 200 {object} models.Result
// @Router /transactions [post]
func (h *SessionHandler) AddTransaction(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req models.TransactionRequest
	if !bind(c, &req) {
		return
	}

	amount, err := validation.ParseAmount(string(req.Amount))
	if err != nil {
		h.result(c, s, false)
		return
	}
	_, applied := s.Store().AddTransaction(profilesvc.TransactionInput{
		Amount:    h.registry.Converter().ToCanonical(amount, s.Store().Profile().Currency),
		Direction: profile.Direction(strings.ToLower(strings.TrimSpace(req.Direction))),
		Category:  req.Category,
	})
	h.result(c, s, applied)
}

// @Summary Reset data
// @Description Wipes saved amount, goal, history, deadline, friends and ghost mode. Requires confirm=true.
// @Tags state
// @Accept json
// @Produce json
// @Param X-User-ID header string true "User ID"
// @Param request body models.ResetRequest true "Confirmation"
// @Success 200 {object} models.Result
// @Router /reset [post]
func (h *SessionHandler) ResetData(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req models.ResetRequest
	if !bind(c, &req) {
		return
	}
	if !req.Confirm {
		h.result(c, s, false)
		return
	}
	s.Store().ResetData()
	h.result(c, s, true)
}

// @Summary Add friend
// @Tags friends
// @Produce json
// @Param X-User-ID header string true "User ID"
// @Param id path string true "Friend user ID"
// @Success 200 {object} models.Result
// @Router /friends/{id} [post]
func (h *SessionHandler) AddFriend(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	h.result(c, s, s.Store().AddFriend(c.Param("id")))
}

// @Summary Remove friend
// @Tags friends
// @Produce json
// @Param X-User-ID header string true "User ID"
// @Param id path string true "Friend user ID"
// @Success 200 {object} models.Result
// @Router /friends/{id} [delete]
func (h *SessionHandler) RemoveFriend(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	h.result(c, s, s.Store().RemoveFriend(c.Param("id")))
}

// @Summary Cheer a friend
// @Description Fires a one-shot celebration on the friend's open session
// @Tags friends
// @Produce json
// @Param X-User-ID header string true "User ID"
// @Param id path string true "Target user ID"
// @Success 200 {object} models.CheerResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 502 {object} middleware.ErrorResponse
// @Router /cheers/{id} [post]
func (h *SessionHandler) SendCheer(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	target := c.Param("id")
	if err := validation.ValidateUserID(target); err != nil {
		middleware.SendError(c, apperrors.NewValidationError("id", err.Error()))
		return
	}
	at, err := h.registry.SendCheer(c.Request.Context(), s.UserID(), target)
	if err != nil {
		middleware.SendError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.CheerResponse{TargetID: target, CheerAt: at})
}

// @Summary Collect celebrations
// @Description Returns cheers received since the last call
// @Tags friends
// @Produce json
// @Param X-User-ID header string true "User ID"
// @Success 200 {object} models.CelebrationsResponse
// @Router /celebrations [get]
func (h *SessionHandler) GetCelebrations(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, models.CelebrationsResponse{Celebrations: s.Celebrations().Drain()})
}

func (h *SessionHandler) session(c *gin.Context) (*service.Session, bool) {
	s, err := h.registry.Get(middleware.GetUserID(c))
	if err != nil {
		middleware.SendError(c, err)
		return nil, false
	}
	return s, true
}

func (h *SessionHandler) state(s *service.Session) models.StateView {
	return service.BuildState(s.Store().Profile(), h.registry.Converter(), h.now())
}

func (h *SessionHandler) result(c *gin.Context, s *service.Session, applied bool) {
	state := h.state(s)
	c.JSON(http.StatusOK, models.Result{Applied: applied, State: &state})
}

func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.SendError(c, apperrors.NewBadRequestError("invalid JSON body"))
		return false
	}
	return true
}
