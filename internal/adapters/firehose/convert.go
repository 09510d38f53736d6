package firehose

import (
	"strings"
	"time"

	appbsky "github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/atproto/syntax"

	"github.com/okian/affirmbot/internal/domain/model"
)

// ToEvent maps a decoded post record to a domain event. botDID resolves the
// mention and reply-to-bot flags.
func ToEvent(did, rkey, cid string, post *appbsky.FeedPost, botDID string) model.Event {
	e := model.Event{
		ActorDID:   did,
		Collection: model.PostCollection,
		RecordKey:  rkey,
		CID:        cid,
		Text:       post.Text,
		Langs:      post.Langs,
	}
	if t, err := syntax.ParseDatetimeTime(post.CreatedAt); err == nil {
		e.CreatedAt = t.UTC()
	} else {
		e.CreatedAt = time.Now().UTC()
	}

	if r := post.Reply; r != nil {
		e.IsReply = true
		ref := &model.ReplyRef{}
		if r.Root != nil {
			ref.RootURI, ref.RootCID = r.Root.Uri, r.Root.Cid
		}
		if r.Parent != nil {
			ref.ParentURI, ref.ParentCID = r.Parent.Uri, r.Parent.Cid
		}
		e.Reply = ref
		e.ReplyToBot = botDID != "" && authority(ref.ParentURI) == botDID
	}

	for _, facet := range post.Facets {
		if facet == nil {
			continue
		}
		for _, feature := range facet.Features {
			if feature == nil || feature.RichtextFacet_Mention == nil {
				continue
			}
			e.IsMention = true
			if botDID != "" && feature.RichtextFacet_Mention.Did == botDID {
				e.MentionsBot = true
			}
		}
	}

	e.Embed = embed(post.Embed)
	return e
}

func embed(pe *appbsky.FeedPost_Embed) *model.Embed {
	if pe == nil {
		return nil
	}
	out := &model.Embed{}
	switch {
	case pe.EmbedImages != nil:
		out.ImageAlt = imageAlts(pe.EmbedImages)
	case pe.EmbedExternal != nil:
		external(out, pe.EmbedExternal)
	case pe.EmbedRecord != nil:
		if pe.EmbedRecord.Record != nil {
			out.QuotedURI = pe.EmbedRecord.Record.Uri
		}
	case pe.EmbedRecordWithMedia != nil:
		rwm := pe.EmbedRecordWithMedia
		if rwm.Record != nil && rwm.Record.Record != nil {
			out.QuotedURI = rwm.Record.Record.Uri
		}
		if m := rwm.Media; m != nil {
			if m.EmbedImages != nil {
				out.ImageAlt = imageAlts(m.EmbedImages)
			}
			if m.EmbedExternal != nil {
				external(out, m.EmbedExternal)
			}
		}
	}
	if *out == (model.Embed{}) {
		return nil
	}
	return out
}

func external(out *model.Embed, ext *appbsky.EmbedExternal) {
	if ext.External == nil {
		return
	}
	out.URI = ext.External.Uri
	out.Text = strings.TrimSpace(ext.External.Title + " " + ext.External.Description)
}

func imageAlts(imgs *appbsky.EmbedImages) string {
	alts := make([]string, 0, len(imgs.Images))
	for _, img := range imgs.Images {
		if img != nil && img.Alt != "" {
			alts = append(alts, img.Alt)
		}
	}
	return strings.Join(alts, " ")
}

// authority returns the DID of an at:// URI.
func authority(uri string) string {
	rest, ok := strings.CutPrefix(uri, "at://")
	if !ok {
		return ""
	}
	did, _, _ := strings.Cut(rest, "/")
	return did
}
