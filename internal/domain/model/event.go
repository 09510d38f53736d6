// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// PostCollection is the record collection the bot reacts to.
const PostCollection = "app.bsky.feed.post"

// Event is one post-created notification. It is never mutated after intake.
type Event struct {
	ActorDID   string    `json:"actor_did"`
	Collection string    `json:"collection"`
	RecordKey  string    `json:"rkey"`
	CID        string    `json:"cid"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`

	IsReply   bool `json:"is_reply"`
	IsMention bool `json:"is_mention"`
	// MentionsBot and ReplyToBot are resolved against the bot's DID at decode time.
	MentionsBot bool `json:"mentions_bot"`
	ReplyToBot  bool `json:"reply_to_bot"`

	Reply *ReplyRef `json:"reply,omitempty"`
	Embed *Embed    `json:"embed,omitempty"`
	Langs []string  `json:"langs,omitempty"`
}

// ReplyRef holds the thread root and parent of a reply post.
type ReplyRef struct {
	RootURI   string `json:"root_uri"`
	RootCID   string `json:"root_cid"`
	ParentURI string `json:"parent_uri"`
	ParentCID string `json:"parent_cid"`
}

// Embed is the quote, link or image attached to a post.
// QuotedURI is set for record embeds; Text is filled once the quote is resolved.
type Embed struct {
	Text      string `json:"text,omitempty"`
	URI       string `json:"uri,omitempty"`
	ImageAlt  string `json:"image_alt,omitempty"`
	QuotedURI string `json:"quoted_uri,omitempty"`
}

// URI returns the at:// URI of the post.
func (e Event) URI() string {
	return "at://" + e.ActorDID + "/" + e.Collection + "/" + e.RecordKey
}

// ID returns the idempotency key for the event.
func (e Event) ID() string {
	if e.CID != "" {
		return e.CID
	}
	return e.URI()
}

// Addressed reports whether the post mentions the bot or replies to one of its posts.
func (e Event) Addressed() bool {
	return e.MentionsBot || e.ReplyToBot
}

// Locale returns "ja" or "en" from the first language tag. Untagged posts are "ja".
func (e Event) Locale() string {
	if len(e.Langs) == 0 || strings.HasPrefix(strings.ToLower(e.Langs[0]), "ja") {
		return "ja"
	}
	return "en"
}

// Validate checks the fields needed to route and answer an event.
func (e Event) Validate() error {
	switch {
	case e.ActorDID == "":
		return wrapValidation("missing actor_did")
	case e.RecordKey == "":
		return wrapValidation("missing rkey")
	case e.Collection != PostCollection:
		return wrapValidation("unsupported collection " + e.Collection)
	}
	return nil
}
