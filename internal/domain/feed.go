package domain

import (
	"encoding/json"
	"fmt"
)

// EventType discrimina las variantes de FeedEvent.
type EventType string

const (
	EventFollow       EventType = "follow"
	EventSessionEnded EventType = "sessionEnded"
)

// FollowPayload es la identidad del seguidor capturada al momento de seguir.
// No se actualiza después.
type FollowPayload struct {
	FollowerID    string `json:"followerId"`
	FollowerName  string `json:"followerName"`
	FollowerImage string `json:"followerImage,omitempty"`
}

// SessionEndedPayload es el snapshot del cierre de una sesión: identidad del
// creador y lista de participantes al momento de terminar.
type SessionEndedPayload struct {
	SessionID    string   `json:"sessionId"`
	SessionName  string   `json:"sessionName"`
	CreatorID    string   `json:"creatorId"`
	CreatorName  string   `json:"creatorName"`
	CreatorImage string   `json:"creatorImage,omitempty"`
	Participants []string `json:"participants"`
	EndedBy      string   `json:"endedBy"`
}

// FeedEvent es una unión etiquetada: exactamente un payload está presente
// según Type. Es append-only y pertenece a la partición de feed del receptor.
type FeedEvent struct {
	ID           string
	Recipient    string
	Type         EventType
	Timestamp    Timestamp
	Follow       *FollowPayload
	SessionEnded *SessionEndedPayload
}

// NewFollowEvent construye el evento que recibe el usuario seguido.
func NewFollowEvent(follower Profile) FeedEvent {
	return FeedEvent{
		Type: EventFollow,
		Follow: &FollowPayload{
			FollowerID:    follower.ID,
			FollowerName:  follower.DisplayName(),
			FollowerImage: follower.ProfileImage,
		},
	}
}

// NewSessionEndedEvent construye el evento de cierre de sesión.
func NewSessionEndedEvent(sess Session, creator Profile, participants []string) FeedEvent {
	return FeedEvent{
		Type: EventSessionEnded,
		SessionEnded: &SessionEndedPayload{
			SessionID:    sess.ID,
			SessionName:  sess.Name,
			CreatorID:    sess.CreatorID,
			CreatorName:  creator.DisplayName(),
			CreatorImage: creator.ProfileImage,
			Participants: participants,
			EndedBy:      sess.CreatorID,
		},
	}
}

// feedEventDoc es la forma plana del evento. Es la misma para el documento
// persistido y para las respuestas de la API: al persistir el ID va vacío
// (vive en el path del documento) y se omite; al servir el evento ya leído,
// el ID viaja para que el cliente pueda deduplicar entregas repetidas.
type feedEventDoc struct {
	ID        string    `json:"id,omitempty"`
	Type      EventType `json:"type"`
	Timestamp Timestamp `json:"timestamp,omitempty"`

	// Campos de follow.
	FollowerID    string `json:"followerId,omitempty"`
	FollowerName  string `json:"followerName,omitempty"`
	FollowerImage string `json:"followerImage,omitempty"`

	// Campos de sessionEnded.
	SessionID    string   `json:"sessionId,omitempty"`
	SessionName  string   `json:"sessionName,omitempty"`
	CreatorID    string   `json:"creatorId,omitempty"`
	CreatorName  string   `json:"creatorName,omitempty"`
	CreatorImage string   `json:"creatorImage,omitempty"`
	Participants []string `json:"participants,omitempty"`
	EndedBy      string   `json:"endedBy,omitempty"`
}

func (e FeedEvent) MarshalJSON() ([]byte, error) {
	doc := feedEventDoc{ID: e.ID, Type: e.Type, Timestamp: e.Timestamp}
	switch e.Type {
	case EventFollow:
		if e.Follow == nil {
			return nil, fmt.Errorf("feed event: follow payload missing")
		}
		doc.FollowerID = e.Follow.FollowerID
		doc.FollowerName = e.Follow.FollowerName
		doc.FollowerImage = e.Follow.FollowerImage
	case EventSessionEnded:
		if e.SessionEnded == nil {
			return nil, fmt.Errorf("feed event: sessionEnded payload missing")
		}
		doc.SessionID = e.SessionEnded.SessionID
		doc.SessionName = e.SessionEnded.SessionName
		doc.CreatorID = e.SessionEnded.CreatorID
		doc.CreatorName = e.SessionEnded.CreatorName
		doc.CreatorImage = e.SessionEnded.CreatorImage
		doc.Participants = e.SessionEnded.Participants
		doc.EndedBy = e.SessionEnded.EndedBy
	default:
		return nil, fmt.Errorf("feed event: unknown type %q", e.Type)
	}
	return json.Marshal(doc)
}

func (e *FeedEvent) UnmarshalJSON(b []byte) error {
	var doc feedEventDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	out := FeedEvent{ID: doc.ID, Type: doc.Type, Timestamp: doc.Timestamp}
	switch doc.Type {
	case EventFollow:
		out.Follow = &FollowPayload{
			FollowerID:    doc.FollowerID,
			FollowerName:  doc.FollowerName,
			FollowerImage: doc.FollowerImage,
		}
	case EventSessionEnded:
		out.SessionEnded = &SessionEndedPayload{
			SessionID:    doc.SessionID,
			SessionName:  doc.SessionName,
			CreatorID:    doc.CreatorID,
			CreatorName:  doc.CreatorName,
			CreatorImage: doc.CreatorImage,
			Participants: doc.Participants,
			EndedBy:      doc.EndedBy,
		}
	default:
		return fmt.Errorf("feed event: unknown type %q", doc.Type)
	}
	*e = out
	return nil
}
