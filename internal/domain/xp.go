package domain

// XPProfile es el documento en usersXPsystem/{userId}. Tras normalizar,
// XP queda en [0, step) y cada umbral cruzado incrementa Level.
type XPProfile struct {
	UserID          string   `json:"-"`
	XP              int      `json:"xp"`
	Level           int      `json:"level"`
	Badges          []string `json:"badges,omitempty"`
	BadgeCollection []string `json:"badgeCollection,omitempty"`
}

// MaxDisplayedBadges limita cuántos badges puede fijar un usuario en su perfil.
const MaxDisplayedBadges = 3

// DefaultBadgeCollection es la colección inicial que recibe cada cuenta nueva.
func DefaultBadgeCollection() []string {
	return []string{"favorite", "anchor", "star"}
}

// HasBadge reporta si el badge pertenece a la colección del usuario.
func (p XPProfile) HasBadge(badge string) bool {
	for _, b := range p.BadgeCollection {
		if b == badge {
			return true
		}
	}
	return false
}
