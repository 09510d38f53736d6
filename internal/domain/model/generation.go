package model

// GenerationRequest carries what a mode hands to the text generator.
// Mode selects the prompt. Likes holds posts the user liked; only analyze
// fills it.
type GenerationRequest struct {
	Mode     string
	Locale   string
	UserName string
	Posts    []string
	Likes    []string
	IsU18    bool
}

// Generation is generated reply text plus, for affirmations, an interaction
// score in [0,100].
type Generation struct {
	Text  string
	Score int
}

// Judgement is the generator's verdict on whether a post may be cheered.
type Judgement struct {
	OK      bool
	Comment string
}
