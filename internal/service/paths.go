package service

// Paths del layout persistido. Deben round-trippear con los documentos
// existentes, así que los nombres de colección no se tocan.
const (
	sessionsCollection    = "workoutSessions"
	usersCollection       = "users"
	xpCollection          = "usersXPsystem"
	feedCollection        = "feed"
	quotesCollection      = "quotes"
	indexCollection       = "sessionIndex"
	credentialsCollection = "credentials"
)

func sessionPath(sessionID string) string {
	return sessionsCollection + "/" + sessionID
}

func participantsPath(sessionID string) string {
	return sessionPath(sessionID) + "/participants"
}

func participantPath(sessionID, userID string) string {
	return participantsPath(sessionID) + "/" + userID
}

func userPath(userID string) string {
	return usersCollection + "/" + userID
}

func xpPath(userID string) string {
	return xpCollection + "/" + userID
}

func feedEventsPath(userID string) string {
	return feedCollection + "/" + userID + "/events"
}

func feedEventPath(userID, eventID string) string {
	return feedEventsPath(userID) + "/" + eventID
}

func sessionIndexPath(userID string) string {
	return indexCollection + "/" + userID
}
