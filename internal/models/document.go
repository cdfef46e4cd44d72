package models

const (
	SchemaVersion = 3
	StorageKey    = "cloudvps_app_v3"
)

type Prefs struct {
	Theme        string `json:"theme"`   // light | dark | auto
	Accent       string `json:"accent"`  // blue | purple | cyan
	Density      string `json:"density"` // comfortable | compact
	ReduceMotion bool   `json:"reduceMotion"`
	Sound        bool   `json:"sound"`
	Tips         bool   `json:"tips"`
}

type Meta struct {
	CreatedAt      int64                 `json:"createdAt"`
	UpdatedAt      int64                 `json:"updatedAt"`
	Prefs          Prefs                 `json:"prefs"`
	OnboardingDone bool                  `json:"onboardingDone"`
	ResetTokens    map[string]ResetToken `json:"resetTokens"`
}

type Sessions struct {
	CurrentUserID string `json:"currentUserId"`
}

// Document is the whole persisted application state. It is always written
// wholesale.
type Document struct {
	Version  int                       `json:"version"`
	Users    map[string]*User          `json:"users"`
	Sessions Sessions                  `json:"sessions"`
	PerUser  map[string]*UserGameState `json:"perUser"`
	Meta     Meta                      `json:"meta"`
}

func DefaultPrefs() Prefs {
	return Prefs{
		Theme:   "light",
		Accent:  "blue",
		Density: "comfortable",
		Tips:    true,
	}
}

func DefaultDocument(nowMs int64) *Document {
	return &Document{
		Version:  SchemaVersion,
		Users:    make(map[string]*User),
		PerUser:  make(map[string]*UserGameState),
		Sessions: Sessions{},
		Meta: Meta{
			CreatedAt:   nowMs,
			UpdatedAt:   nowMs,
			Prefs:       DefaultPrefs(),
			ResetTokens: make(map[string]ResetToken),
		},
	}
}

// FindUserByEmail matches case-insensitively; callers pass a normalized email.
func (d *Document) FindUserByEmail(email string) *User {
	for _, u := range d.Users {
		if NormalizeEmail(u.Email) == email {
			return u
		}
	}
	return nil
}
