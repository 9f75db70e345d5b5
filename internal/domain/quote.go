package domain

// Quote es una frase motivacional en quotes/{quoteId}, mostrada en el dashboard.
type Quote struct {
	ID     string `json:"-"`
	Text   string `json:"quote"`
	Author string `json:"author,omitempty"`
}
