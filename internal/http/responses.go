package http

import "fitlink/internal/domain"

// Los documentos de dominio serializan sin su id (el id vive en el path del
// store), así que las respuestas lo agregan explícitamente.

type userResponse struct {
	ID string `json:"id"`
	domain.User
}

type sessionResponse struct {
	ID string `json:"id"`
	domain.Session
}

func userBody(u domain.User) userResponse {
	return userResponse{ID: u.ID, User: u}
}

func sessionBody(s domain.Session) sessionResponse {
	return sessionResponse{ID: s.ID, Session: s}
}
