package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"budget-bubble-backend/internal/common/logger"
	"budget-bubble-backend/internal/common/validation"
	currency "budget-bubble-backend/internal/features/currency/models"
	docmodels "budget-bubble-backend/internal/features/document/models"
	"budget-bubble-backend/internal/features/document/repository"
	"budget-bubble-backend/internal/features/profile/models"

	"github.com/google/uuid"
)

// DocumentGateway is the part of the remote document gateway the store uses.
type DocumentGateway interface {
	Get(ctx context.Context, id string) (*docmodels.Document, error)
	Merge(ctx context.Context, id string, patch map[string]any) error
	AddToSet(ctx context.Context, id, field string, value any) error
	RemoveFromSet(ctx context.Context, id, field string, value any) error
}

// ThemeApplier performs the presentation side effect of a theme change.
type ThemeApplier interface {
	ApplyTheme(userID string, theme models.Theme)
}

// GoalInput carries setGoal arguments. Zero Currency means the current display
// currency, empty Title means the default title, nil Deadline clears it.
type GoalInput struct {
	Amount   float64
	Deadline *string
	Currency currency.Code
	Title    string
}

// TransactionInput is a new transaction; Amount is in the canonical currency.
type TransactionInput struct {
	Amount    float64
	Direction models.Direction
	Category  string
}

// Store is the single owner of the current user's profile. Every mutation
// applies locally first and then queues a merge-write of only the changed
// fields. Validation failures are silent no-ops reported through the bool
// results.
type Store struct {
	userID string

	mu      sync.RWMutex
	profile models.UserProfile
	loaded  bool

	gateway   DocumentGateway
	persister *Persister
	theme     ThemeApplier
	now       func() time.Time
	newID     func() string

	notifyMu       sync.Mutex
	friendsChanged []func(ids []string)
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

func WithThemeApplier(theme ThemeApplier) Option {
	return func(s *Store) { s.theme = theme }
}

func NewStore(userID string, gateway DocumentGateway, persister *Persister, opts ...Option) *Store {
	s := &Store{
		userID:    userID,
		profile:   models.Defaults(userID),
		gateway:   gateway,
		persister: persister,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) UserID() string {
	return s.userID
}

// Profile returns a copy of the current state.
func (s *Store) Profile() models.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile.Clone()
}

func (s *Store) FriendIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.profile.FriendIDs...)
}

func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// OnFriendsChanged registers a listener called with the full friend id list
// after every change to it.
func (s *Store) OnFriendsChanged(fn func(ids []string)) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.friendsChanged = append(s.friendsChanged, fn)
}

// LoadData adopts the remote document merged onto defaults, or creates the
// document from defaults when it does not exist yet.
func (s *Store) LoadData(ctx context.Context) error {
	id := s.UserID()

	doc, err := s.gateway.Get(ctx, id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		fresh := models.Defaults(id)
		if err := s.gateway.Merge(ctx, id, fresh.Document()); err != nil {
			return fmt.Errorf("create profile %s: %w", id, err)
		}
		s.adopt(fresh)
		logger.Info().Str("user_id", id).Msg("Created default profile")
	case err != nil:
		return fmt.Errorf("load profile %s: %w", id, err)
	default:
		s.adopt(models.DecodeProfile(id, doc.Fields))
		logger.Debug().Str("user_id", id).Msg("Loaded profile")
	}

	s.notifyFriends()
	return nil
}

func (s *Store) adopt(p models.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = p
	s.loaded = true
}

func (s *Store) SetGoal(in GoalInput) bool {
	if err := validation.ValidateGoalAmount(in.Amount); err != nil {
		return false
	}
	if in.Currency != "" && !in.Currency.IsSupported() {
		return false
	}
	var deadline *string
	if in.Deadline != nil {
		d, err := validation.ParseDeadline(*in.Deadline)
		if err != nil {
			return false
		}
		deadline = d
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = models.DefaultGoalTitle
	}
	if validation.ValidateGoalTitle(title) != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	goalCurrency := in.Currency
	if goalCurrency == "" {
		goalCurrency = s.profile.Currency
	}
	s.profile.Goal = in.Amount
	s.profile.GoalCurrency = goalCurrency
	s.profile.Deadline = deadline
	s.profile.GoalTitle = title

	s.persistLocked("setGoal", map[string]any{
		models.FieldGoal:         in.Amount,
		models.FieldGoalCurrency: goalCurrency,
		models.FieldDeadline:     deadline,
		models.FieldGoalTitle:    title,
	})
	return true
}

func (s *Store) SetCurrency(c currency.Code) bool {
	if !c.IsSupported() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profile.Currency = c
	s.persistLocked("setCurrency", map[string]any{models.FieldCurrency: c})
	return true
}

func (s *Store) SetTheme(t models.Theme) bool {
	if !t.Valid() {
		return false
	}
	s.mu.Lock()
	s.profile.Theme = t
	s.persistLocked("setTheme", map[string]any{models.FieldTheme: t})
	s.mu.Unlock()

	if s.theme != nil {
		s.theme.ApplyTheme(s.UserID(), t)
	}
	return true
}

func (s *Store) SetUsername(name string) bool {
	name = strings.TrimSpace(name)
	if validation.ValidateUsername(name) != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profile.Username = name
	s.persistLocked("setUsername", map[string]any{models.FieldUsername: name})
	return true
}

// ToggleGhost flips the ghost flag and returns the new value.
func (s *Store) ToggleGhost() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profile.IsGhost = !s.profile.IsGhost
	s.persistLocked("toggleGhost", map[string]any{models.FieldIsGhost: s.profile.IsGhost})
	return s.profile.IsGhost
}

func (s *Store) AddCategory(name string) bool {
	if validation.ValidateCategory(name) != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.profile.HasCategory(name) {
		return false
	}
	categories := append(append([]string{}, s.profile.Categories...), name)
	s.profile.Categories = categories
	s.persistLocked("addCategory", map[string]any{models.FieldCategories: categories})
	return true
}

// RemoveCategory leaves transactions tagged with name untouched.
func (s *Store) RemoveCategory(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.profile.HasCategory(name) {
		return false
	}
	categories := make([]string, 0, len(s.profile.Categories))
	for _, c := range s.profile.Categories {
		if c != name {
			categories = append(categories, c)
		}
	}
	s.profile.Categories = categories
	s.persistLocked("removeCategory", map[string]any{models.FieldCategories: categories})
	return true
}

// AddTransaction prepends a transaction and moves the saved amount, clamped
// at zero. The whole history is rewritten remotely.
func (s *Store) AddTransaction(in TransactionInput) (models.Transaction, bool) {
	if validation.ValidateAmount(in.Amount) != nil || !in.Direction.Valid() {
		return models.Transaction{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.profile.HasCategory(in.Category) {
		return models.Transaction{}, false
	}

	saved := s.profile.Saved
	if in.Direction == models.Credit {
		saved += in.Amount
	} else {
		saved -= in.Amount
	}
	if math.IsInf(saved, 0) {
		return models.Transaction{}, false
	}
	saved = models.NonNegative(saved)

	tx := models.Transaction{
		ID:        s.newID(),
		Amount:    in.Amount,
		Direction: in.Direction,
		Category:  in.Category,
		CreatedAt: s.now().UTC(),
	}
	history := make([]models.Transaction, 0, len(s.profile.History)+1)
	history = append(history, tx)
	history = append(history, s.profile.History...)

	s.profile.Saved = saved
	s.profile.History = history
	s.persistLocked("addTransaction", map[string]any{
		models.FieldSaved:   saved,
		models.FieldHistory: history,
	})
	return tx, true
}

// ResetData wipes progress, history, deadline, friends and the ghost flag in
// one merge-write. Callers must confirm with the user first.
func (s *Store) ResetData() {
	s.mu.Lock()
	s.profile.Saved = 0
	s.profile.Goal = models.DefaultGoal
	s.profile.History = []models.Transaction{}
	s.profile.Deadline = nil
	s.profile.FriendIDs = []string{}
	s.profile.IsGhost = false

	s.persistLocked("resetData", map[string]any{
		models.FieldSaved:     0.0,
		models.FieldGoal:      models.DefaultGoal,
		models.FieldHistory:   []models.Transaction{},
		models.FieldDeadline:  nil,
		models.FieldFriendIDs: []string{},
		models.FieldIsGhost:   false,
	})
	s.mu.Unlock()

	s.notifyFriends()
}

// AddFriend ignores empty ids, the owner's own id and ids already present.
// The remote friend list takes an atomic set union.
func (s *Store) AddFriend(friendID string) bool {
	friendID = strings.TrimSpace(friendID)
	if friendID == "" || friendID == s.UserID() || validation.ValidateUserID(friendID) != nil {
		return false
	}

	s.mu.Lock()
	if s.profile.HasFriend(friendID) {
		s.mu.Unlock()
		return false
	}
	s.profile.FriendIDs = append(append([]string{}, s.profile.FriendIDs...), friendID)
	owner := s.userID
	s.persister.Submit("addFriend", func(ctx context.Context) error {
		return s.gateway.AddToSet(ctx, owner, models.FieldFriendIDs, friendID)
	})
	s.mu.Unlock()

	s.notifyFriends()
	return true
}

// RemoveFriend mirrors AddFriend with an atomic set difference.
func (s *Store) RemoveFriend(friendID string) bool {
	friendID = strings.TrimSpace(friendID)
	if friendID == "" {
		return false
	}

	s.mu.Lock()
	if !s.profile.HasFriend(friendID) {
		s.mu.Unlock()
		return false
	}
	ids := make([]string, 0, len(s.profile.FriendIDs))
	for _, id := range s.profile.FriendIDs {
		if id != friendID {
			ids = append(ids, id)
		}
	}
	s.profile.FriendIDs = ids
	owner := s.userID
	s.persister.Submit("removeFriend", func(ctx context.Context) error {
		return s.gateway.RemoveFromSet(ctx, owner, models.FieldFriendIDs, friendID)
	})
	s.mu.Unlock()

	s.notifyFriends()
	return true
}

// ObserveCheer records a newer cheer timestamp seen on the owner's document.
func (s *Store) ObserveCheer(at int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if at > s.profile.LatestCheerAt {
		s.profile.LatestCheerAt = at
	}
}

// Flush waits for queued remote writes.
func (s *Store) Flush() {
	s.persister.Flush()
}

// Close drains queued remote writes and stops the persister.
func (s *Store) Close() {
	s.persister.Close()
}

func (s *Store) persistLocked(op string, patch map[string]any) {
	id := s.userID
	s.persister.Submit(op, func(ctx context.Context) error {
		return s.gateway.Merge(ctx, id, patch)
	})
}

// notifyFriends reads the friend list at delivery time so concurrent
// mutations can never leave listeners on an older list.
func (s *Store) notifyFriends() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if len(s.friendsChanged) == 0 {
		return
	}
	ids := s.FriendIDs()
	for _, fn := range s.friendsChanged {
		fn(ids)
	}
}
