package domain

// Session es el documento en workoutSessions/{sessionId}. CreatorID es
// inmutable; IsActive pasa a false exactamente una vez.
type Session struct {
	ID          string     `json:"-"`
	CreatorID   string     `json:"uid"`
	CreatorName string     `json:"creatorName,omitempty"`
	Name        string     `json:"name"`
	Movement    string     `json:"movement"`
	IsPublic    bool       `json:"isPublic"`
	IsActive    bool       `json:"isActive"`
	CreatedAt   Timestamp  `json:"createdAt,omitempty"`
	EndedAt     *Timestamp `json:"endedAt,omitempty"`
}

// Participant es el documento en workoutSessions/{sessionId}/participants/{userId}.
// Existe solo mientras dura la membresía; se borra en exit y al terminar la sesión.
type Participant struct {
	SessionID string    `json:"-"`
	UserID    string    `json:"uid"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	JoinedAt  Timestamp `json:"joinedAt,omitempty"`
}
