package services

import (
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"cloudvps-backend/internal/models"

	"golang.org/x/crypto/bcrypt"
)

const (
	maxDisplayName   = 32
	minPassword      = 6
	resetCodeTTL     = 10 * time.Minute
	maxResetAttempts = 5
)

type Profile struct {
	User      models.User     `json:"user"`
	Level     models.Level    `json:"level"`
	Balance   int64           `json:"balance"`
	Lifetime  models.Lifetime `json:"lifetime"`
	Stats     models.Stats    `json:"stats"`
	Unread    int             `json:"unread"`
	TwoFA     bool            `json:"two_fa_enabled"`
	RefCode   string          `json:"ref_code"`
	Prefs     models.Prefs    `json:"prefs"`
	UI        models.UIState  `json:"ui"`
	Onboarded bool            `json:"onboarding_done"`
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// checkPassword accepts bcrypt hashes and the FNV digests of imported
// documents.
func checkPassword(stored, password string) bool {
	if strings.HasPrefix(stored, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	}
	return stored != "" && stored == models.LegacyPassHash(password)
}

func cleanName(name, fallback string) string {
	name = strings.TrimSpace(name)
	if r := []rune(name); len(r) > maxDisplayName {
		name = strings.TrimSpace(string(r[:maxDisplayName]))
	}
	if name == "" {
		return fallback
	}
	return name
}

// Register creates an email account and signs it in.
func (e *Engine) Register(email, password, name string) (*models.User, error) {
	normalized := models.NormalizeEmail(email)
	if !models.ValidEmail(normalized) {
		return nil, ErrInvalidEmail
	}
	if len(password) < minPassword {
		return nil, ErrPasswordTooShort
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.doc.FindUserByEmail(normalized) != nil {
		return nil, ErrEmailTaken
	}

	user := &models.User{
		ID:        models.NewID("u"),
		Email:     normalized,
		Name:      cleanName(name, "User"),
		PassHash:  hash,
		Provider:  models.ProviderEmail,
		CreatedAt: e.now().UnixMilli(),
	}
	e.doc.Users[user.ID] = user
	e.doc.PerUser[user.ID] = models.DefaultUserGameState(e.now())

	e.signIn(user.ID)
	u := *user
	return &u, nil
}

func (e *Engine) Login(email, password string) (*models.User, error) {
	normalized := models.NormalizeEmail(email)

	e.mu.Lock()
	user := e.doc.FindUserByEmail(normalized)
	var stored string
	if user != nil {
		stored = user.PassHash
	}
	e.mu.Unlock()

	if user == nil {
		return nil, ErrUserNotFound
	}
	// bcrypt is slow; compare outside the lock.
	if !checkPassword(stored, password) {
		return nil, ErrWrongPassword
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	user, ok := e.doc.Users[user.ID]
	if !ok {
		return nil, ErrUserNotFound
	}
	if !strings.HasPrefix(user.PassHash, "$2") {
		if hash, err := hashPassword(password); err == nil {
			user.PassHash = hash
		}
	}

	e.signIn(user.ID)
	u := *user
	return &u, nil
}

// SocialLogin creates a fresh demo account for the provider on every call.
func (e *Engine) SocialLogin(provider string) (*models.User, error) {
	prov := models.ProviderGoogle
	name := "Google User"
	if provider == string(models.ProviderGitHub) {
		prov = models.ProviderGitHub
		name = "GitHub User"
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	user := &models.User{
		ID:        models.NewID("u"),
		Email:     fmt.Sprintf("%s_%d@demo.local", prov, models.RandInt(e.rng, 1000, 9999)),
		Name:      name,
		Provider:  prov,
		CreatedAt: e.now().UnixMilli(),
	}
	e.doc.Users[user.ID] = user
	e.doc.PerUser[user.ID] = models.DefaultUserGameState(e.now())

	e.signIn(user.ID)
	u := *user
	return &u, nil
}

// signIn records the session and counts the login. Callers hold e.mu.
func (e *Engine) signIn(userID string) {
	e.doc.Sessions.CurrentUserID = userID
	s, err := e.state(userID)
	if err != nil {
		return
	}

	s.Stats.Logins++
	if _, ok := s.Achievements.Unlocked[models.AchievementFirstLogin]; !ok {
		s.Achievements.Unlocked[models.AchievementFirstLogin] = e.now().UnixMilli()
		e.notify(userID, s, "good", "Welcome!", "Achievement unlocked. Claim it in Achievements.")
	}
	e.commit(userID, "login")
}

func (e *Engine) Logout(userID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.doc.Sessions.CurrentUserID == userID {
		e.doc.Sessions.CurrentUserID = ""
		e.persister.MarkDirty()
	}
}

// ForgotPassword issues a 6 digit reset code valid for ten minutes. There
// is no mail transport; the code is returned to the caller.
func (e *Engine) ForgotPassword(email string) (string, error) {
	normalized := models.NormalizeEmail(email)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.doc.FindUserByEmail(normalized) == nil {
		return "", ErrUserNotFound
	}
	code := fmt.Sprintf("%d", models.RandInt(e.rng, 100000, 999999))
	e.doc.Meta.ResetTokens[normalized] = models.ResetToken{
		Code:      code,
		ExpiresAt: e.now().Add(resetCodeTTL).UnixMilli(),
	}
	e.persister.MarkDirty()
	return code, nil
}

// failResetAttempt counts a wrong code and burns the token once it has
// seen maxResetAttempts of them.
func (e *Engine) failResetAttempt(email, code string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tok, ok := e.doc.Meta.ResetTokens[email]
	if !ok || tok.Code != code {
		return
	}
	tok.Attempts++
	if tok.Attempts >= maxResetAttempts {
		delete(e.doc.Meta.ResetTokens, email)
	} else {
		e.doc.Meta.ResetTokens[email] = tok
	}
	e.persister.MarkDirty()
}

func (e *Engine) ResetPassword(email, code, password string) error {
	normalized := models.NormalizeEmail(email)

	e.mu.Lock()
	user := e.doc.FindUserByEmail(normalized)
	tok, hasTok := e.doc.Meta.ResetTokens[normalized]
	nowMs := e.now().UnixMilli()
	e.mu.Unlock()

	if user == nil {
		return ErrUserNotFound
	}
	if !hasTok || tok.ExpiresAt < nowMs {
		return ErrResetCodeExpired
	}
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(code)), []byte(tok.Code)) != 1 {
		e.failResetAttempt(normalized, tok.Code)
		return ErrInvalidResetCode
	}
	if len(password) < minPassword {
		return ErrPasswordTooShort
	}
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	current, ok := e.doc.Meta.ResetTokens[normalized]
	if !ok || current.Code != tok.Code {
		return ErrResetCodeExpired
	}
	user = e.doc.FindUserByEmail(normalized)
	if user == nil {
		return ErrUserNotFound
	}
	user.PassHash = hash
	delete(e.doc.Meta.ResetTokens, normalized)
	e.persister.MarkDirty()
	return nil
}

func (e *Engine) User(userID string) (*models.User, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	user, ok := e.doc.Users[userID]
	if !ok {
		return nil, ErrNotSignedIn
	}
	u := *user
	return &u, nil
}

func (e *Engine) Profile(userID string) (*Profile, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.state(userID)
	if err != nil {
		return nil, err
	}
	user := *e.doc.Users[userID]
	user.PassHash = ""

	return &Profile{
		User:      user,
		Level:     models.LevelFromXP(s.Lifetime.Earned),
		Balance:   s.PointsBalance,
		Lifetime:  s.Lifetime,
		Stats:     s.Stats,
		Unread:    s.UnreadCount(),
		TwoFA:     s.Security.TwoFaEnabled,
		RefCode:   s.RefCode,
		Prefs:     e.doc.Meta.Prefs,
		UI:        s.UI,
		Onboarded: e.doc.Meta.OnboardingDone,
	}, nil
}

func (e *Engine) UpdateProfile(userID, name string) (*models.User, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	user, ok := e.doc.Users[userID]
	if !ok {
		return nil, ErrNotSignedIn
	}
	clean := cleanName(name, "")
	if clean == "" {
		return nil, ErrEmptyName
	}
	user.Name = clean
	e.commit(userID, "profile")

	u := *user
	return &u, nil
}

// Toggle2FA flips the demo two-factor flag and returns the new value.
func (e *Engine) Toggle2FA(userID string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.state(userID)
	if err != nil {
		return false, err
	}
	s.Security.TwoFaEnabled = !s.Security.TwoFaEnabled
	body := "2FA disabled (demo)."
	if s.Security.TwoFaEnabled {
		body = "2FA enabled (demo)."
	}
	e.notify(userID, s, "info", "Security", body)
	e.commit(userID, "security")
	return s.Security.TwoFaEnabled, nil
}

// PrefsUpdate carries optional preference changes; nil fields are left
// alone.
type PrefsUpdate struct {
	Theme        *string `json:"theme"`
	Accent       *string `json:"accent"`
	Density      *string `json:"density"`
	ReduceMotion *bool   `json:"reduceMotion"`
	Sound        *bool   `json:"sound"`
	Tips         *bool   `json:"tips"`
	Onboarded    *bool   `json:"onboardingDone"`
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func (e *Engine) SetPrefs(update PrefsUpdate) (models.Prefs, error) {
	if update.Theme != nil && !oneOf(*update.Theme, "light", "dark", "auto") {
		return models.Prefs{}, fmt.Errorf("%w: theme %q", ErrInvalidPref, *update.Theme)
	}
	if update.Accent != nil && !oneOf(*update.Accent, "blue", "purple", "cyan") {
		return models.Prefs{}, fmt.Errorf("%w: accent %q", ErrInvalidPref, *update.Accent)
	}
	if update.Density != nil && !oneOf(*update.Density, "comfortable", "compact") {
		return models.Prefs{}, fmt.Errorf("%w: density %q", ErrInvalidPref, *update.Density)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p := &e.doc.Meta.Prefs
	if update.Theme != nil {
		p.Theme = *update.Theme
	}
	if update.Accent != nil {
		p.Accent = *update.Accent
	}
	if update.Density != nil {
		p.Density = *update.Density
	}
	if update.ReduceMotion != nil {
		p.ReduceMotion = *update.ReduceMotion
	}
	if update.Sound != nil {
		p.Sound = *update.Sound
	}
	if update.Tips != nil {
		p.Tips = *update.Tips
	}
	if update.Onboarded != nil {
		e.doc.Meta.OnboardingDone = *update.Onboarded
	}
	e.persister.MarkDirty()
	e.broadcastAll("prefs")
	return *p, nil
}

func (e *Engine) SetUIState(userID string, ui models.UIState) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.state(userID)
	if err != nil {
		return err
	}
	s.UI = ui
	e.persister.MarkDirty()
	return nil
}
