// Package bsky talks to the bot's PDS over XRPC: posting replies, quotes
// and reposts, profile labels, quoted posts, actor feeds and follower lists.
package bsky

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	appbsky "github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/atproto/syntax"
	lexutil "github.com/bluesky-social/indigo/lex/util"
	"github.com/bluesky-social/indigo/xrpc"

	"github.com/okian/affirmbot/internal/domain/model"
	"github.com/okian/affirmbot/pkg/httpclient"
	"github.com/okian/affirmbot/pkg/logger"
	"github.com/okian/affirmbot/pkg/metrics"
)

const (
	repostCollection = "app.bsky.feed.repost"
	embedRecordType  = "app.bsky.embed.record"
	followersPage    = 100
	// feedPageMax is the largest page getAuthorFeed and getActorLikes allow.
	feedPageMax      = 100
)

// Client is safe for concurrent use. A re-login swaps the whole xrpc
// client so in-flight calls keep the session they started with.
type Client struct {
	host       string
	handle     string
	password   string
	httpClient *http.Client
	log        logger.Logger

	xc atomic.Pointer[xrpc.Client]
}

// New builds a Client for host. Call Login before anything else.
func New(host, handle, password string, opts ...Option) *Client {
	c := &Client{
		host:     host,
		handle:   handle,
		password: password,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = httpclient.New(httpclient.WithLogger(logger.Slog()))
	}
	if c.log == nil {
		c.log = logger.Named("bsky")
	}
	return c
}

func (c *Client) newXRPC(auth *xrpc.AuthInfo) *xrpc.Client {
	ua := httpclient.UserAgent()
	return &xrpc.Client{
		Client:    c.httpClient,
		Host:      c.host,
		UserAgent: &ua,
		Auth:      auth,
	}
}

// Login creates a fresh session with the account password.
func (c *Client) Login(ctx context.Context) error {
	out, err := comatproto.ServerCreateSession(ctx, c.newXRPC(nil), &comatproto.ServerCreateSession_Input{
		Identifier: c.handle,
		Password:   c.password,
	})
	if err != nil {
		metrics.RecordErrorByComponent("bsky", "login")
		return fmt.Errorf("%w: create session: %w", ErrLogin, err)
	}
	c.xc.Store(c.newXRPC(&xrpc.AuthInfo{
		AccessJwt:  out.AccessJwt,
		RefreshJwt: out.RefreshJwt,
		Handle:     out.Handle,
		Did:        out.Did,
	}))
	c.log.Info(ctx, "logged in", logger.String("did", out.Did), logger.String("handle", out.Handle))
	return nil
}

// RunSessionRefresher logs in again every interval until ctx ends. Failures
// keep the previous session.
func (c *Client) RunSessionRefresher(ctx context.Context, every time.Duration) error {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if err := c.Login(ctx); err != nil {
				c.log.Warn(ctx, "session refresh failed", logger.Error(err))
			}
		}
	}
}

// DID returns the logged-in account's DID, or "" before Login.
func (c *Client) DID() string {
	if xc := c.xc.Load(); xc != nil && xc.Auth != nil {
		return xc.Auth.Did
	}
	return ""
}

func (c *Client) session() (*xrpc.Client, error) {
	xc := c.xc.Load()
	if xc == nil {
		return nil, ErrNoSession
	}
	return xc, nil
}

func remoteErr(op string, err error) error {
	metrics.RecordErrorByComponent("bsky", op)
	return fmt.Errorf("%w: %s: %w", model.ErrTransient, op, err)
}

// Reply posts text as a reply to e. A top-level post is its own thread root.
func (c *Client) Reply(ctx context.Context, e model.Event, text string) error {
	xc, err := c.session()
	if err != nil {
		return err
	}
	parent := &comatproto.RepoStrongRef{Uri: e.URI(), Cid: e.CID}
	root := parent
	if e.Reply != nil && e.Reply.RootURI != "" {
		root = &comatproto.RepoStrongRef{Uri: e.Reply.RootURI, Cid: e.Reply.RootCID}
	}
	post := &appbsky.FeedPost{
		LexiconTypeID: model.PostCollection,
		Text:          text,
		CreatedAt:     syntax.DatetimeNow().String(),
		Reply:         &appbsky.FeedPost_ReplyRef{Root: root, Parent: parent},
		Langs:         []string{e.Locale()},
	}
	if _, err := comatproto.RepoCreateRecord(ctx, xc, &comatproto.RepoCreateRecord_Input{
		Collection: model.PostCollection,
		Repo:       xc.Auth.Did,
		Record:     &lexutil.LexiconTypeDecoder{Val: post},
	}); err != nil {
		return remoteErr("reply", err)
	}
	return nil
}

// Quote publishes text as a new top-level post embedding e.
func (c *Client) Quote(ctx context.Context, e model.Event, text string) error {
	xc, err := c.session()
	if err != nil {
		return err
	}
	post := &appbsky.FeedPost{
		LexiconTypeID: model.PostCollection,
		Text:          text,
		CreatedAt:     syntax.DatetimeNow().String(),
		Embed: &appbsky.FeedPost_Embed{EmbedRecord: &appbsky.EmbedRecord{
			LexiconTypeID: embedRecordType,
			Record:        &comatproto.RepoStrongRef{Uri: e.URI(), Cid: e.CID},
		}},
		Langs: []string{e.Locale()},
	}
	if _, err := comatproto.RepoCreateRecord(ctx, xc, &comatproto.RepoCreateRecord_Input{
		Collection: model.PostCollection,
		Repo:       xc.Auth.Did,
		Record:     &lexutil.LexiconTypeDecoder{Val: post},
	}); err != nil {
		return remoteErr("quote", err)
	}
	return nil
}

// Repost reposts the record at uri.
func (c *Client) Repost(ctx context.Context, uri, cid string) error {
	xc, err := c.session()
	if err != nil {
		return err
	}
	rec := &appbsky.FeedRepost{
		LexiconTypeID: repostCollection,
		CreatedAt:     syntax.DatetimeNow().String(),
		Subject:       &comatproto.RepoStrongRef{Uri: uri, Cid: cid},
	}
	if _, err := comatproto.RepoCreateRecord(ctx, xc, &comatproto.RepoCreateRecord_Input{
		Collection: repostCollection,
		Repo:       xc.Auth.Did,
		Record:     &lexutil.LexiconTypeDecoder{Val: rec},
	}); err != nil {
		return remoteErr("repost", err)
	}
	return nil
}

// Labels returns the label values on did's profile.
func (c *Client) Labels(ctx context.Context, did string) ([]string, error) {
	xc, err := c.session()
	if err != nil {
		return nil, err
	}
	prof, err := appbsky.ActorGetProfile(ctx, xc, did)
	if err != nil {
		return nil, remoteErr("get_profile", err)
	}
	vals := make([]string, 0, len(prof.Labels))
	for _, l := range prof.Labels {
		if l != nil {
			vals = append(vals, l.Val)
		}
	}
	return vals, nil
}

// QuotedText returns the text of the post at uri, or "" if it is gone.
func (c *Client) QuotedText(ctx context.Context, uri string) (string, error) {
	xc, err := c.session()
	if err != nil {
		return "", err
	}
	out, err := appbsky.FeedGetPosts(ctx, xc, []string{uri})
	if err != nil {
		return "", remoteErr("get_posts", err)
	}
	for _, p := range out.Posts {
		if p == nil || p.Record == nil {
			continue
		}
		if post, ok := p.Record.Val.(*appbsky.FeedPost); ok {
			return post.Text, nil
		}
	}
	return "", nil
}

// RecentPosts returns the text of up to n of did's latest own posts, newest
// first. Reposts are skipped.
func (c *Client) RecentPosts(ctx context.Context, did string, n int) ([]string, error) {
	xc, err := c.session()
	if err != nil {
		return nil, err
	}
	out, err := appbsky.FeedGetAuthorFeed(ctx, xc, did, "", "posts_no_replies", false, pageSize(n))
	if err != nil {
		return nil, remoteErr("get_author_feed", err)
	}
	return feedTexts(out.Feed, did, n), nil
}

// Likes returns the text of up to n posts did liked most recently.
func (c *Client) Likes(ctx context.Context, did string, n int) ([]string, error) {
	xc, err := c.session()
	if err != nil {
		return nil, err
	}
	out, err := appbsky.FeedGetActorLikes(ctx, xc, did, "", pageSize(n))
	if err != nil {
		return nil, remoteErr("get_actor_likes", err)
	}
	return feedTexts(out.Feed, "", n), nil
}

func pageSize(n int) int64 {
	if n <= 0 || n > feedPageMax {
		return feedPageMax
	}
	return int64(n)
}

// feedTexts extracts non-empty post texts. A non-empty author keeps only
// posts written by that account.
func feedTexts(feed []*appbsky.FeedDefs_FeedViewPost, author string, n int) []string {
	texts := make([]string, 0, len(feed))
	for _, item := range feed {
		if item == nil || item.Post == nil || item.Post.Record == nil {
			continue
		}
		if author != "" && (item.Post.Author == nil || item.Post.Author.Did != author) {
			continue
		}
		post, ok := item.Post.Record.Val.(*appbsky.FeedPost)
		if !ok || post.Text == "" {
			continue
		}
		texts = append(texts, post.Text)
		if n > 0 && len(texts) == n {
			break
		}
	}
	return texts
}

// Followers pages through every account following did.
func (c *Client) Followers(ctx context.Context, did string) ([]model.Follower, error) {
	xc, err := c.session()
	if err != nil {
		return nil, err
	}
	var (
		all    []model.Follower
		cursor string
	)
	for {
		out, err := appbsky.GraphGetFollowers(ctx, xc, did, cursor, followersPage)
		if err != nil {
			return nil, remoteErr("get_followers", err)
		}
		for _, f := range out.Followers {
			if f == nil {
				continue
			}
			all = append(all, follower(f))
		}
		if out.Cursor == nil || *out.Cursor == "" || len(out.Followers) == 0 {
			return all, nil
		}
		cursor = *out.Cursor
	}
}

func follower(p *appbsky.ActorDefs_ProfileView) model.Follower {
	f := model.Follower{DID: p.Did, Handle: p.Handle}
	if p.DisplayName != nil {
		f.DisplayName = *p.DisplayName
	}
	if p.CreatedAt != nil {
		if t, err := syntax.ParseDatetimeTime(*p.CreatedAt); err == nil {
			f.CreatedAt = t
		}
	}
	return f
}
