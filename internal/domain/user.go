package domain

// User es el documento de perfil en users/{userId}. Los nombres de campo
// deben coincidir con el layout persistido (name, profileImage, etc.).
type User struct {
	ID               string    `json:"-"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	Bio              string    `json:"bio,omitempty"`
	Country          string    `json:"country,omitempty"`
	ProfileImage     string    `json:"profileImage"`
	Followers        []string  `json:"followers,omitempty"`
	Following        []string  `json:"following,omitempty"`
	CurrentSessionID string    `json:"currentSessionId,omitempty"`
	CreatedAt        Timestamp `json:"createdAt,omitempty"`
}

// Defaults que escribe el signup, heredados del producto original.
const (
	DefaultBio     = "Starting my fitness journey!"
	DefaultCountry = "Canada"
)

// Profile es la vista reducida de un usuario que consumen roster y feed.
// Un Profile vacío (ID "") representa un perfil que no se pudo resolver.
type Profile struct {
	ID           string `json:"id,omitempty"`
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	Bio          string `json:"bio,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"`
}

// ProfileOf construye la vista de perfil a partir del documento completo.
func ProfileOf(u User) Profile {
	return Profile{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Bio:          u.Bio,
		ProfileImage: u.ProfileImage,
	}
}

// DisplayName resuelve el nombre visible con los mismos fallbacks del feed
// original: name, luego la parte local del email, luego "User".
func (p Profile) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	if p.Email != "" {
		for i := 0; i < len(p.Email); i++ {
			if p.Email[i] == '@' {
				return p.Email[:i]
			}
		}
		return p.Email
	}
	return "User"
}
