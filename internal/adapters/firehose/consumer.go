// Package firehose subscribes to the relay's repo event stream and turns
// new post records into domain events.
package firehose

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	appbsky "github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/events"
	"github.com/bluesky-social/indigo/events/schedulers/sequential"
	lexutil "github.com/bluesky-social/indigo/lex/util"
	"github.com/bluesky-social/indigo/repo"
	"github.com/bluesky-social/indigo/repomgr"
	"github.com/gorilla/websocket"

	"github.com/okian/affirmbot/internal/domain/model"
	"github.com/okian/affirmbot/pkg/httpclient"
	"github.com/okian/affirmbot/pkg/logger"
	"github.com/okian/affirmbot/pkg/metrics"
)

// Sink receives decoded events. It must not block for long.
type Sink interface {
	Submit(ctx context.Context, e model.Event) bool
}

// Consumer reads app.bsky.feed.post creations from the relay. A single
// sequential scheduler keeps relay order.
type Consumer struct {
	relayHost string
	botDID    func() string
	sink      Sink
	reconnect time.Duration
	log       logger.Logger
}

// New builds a Consumer. botDID is read per event so a late login still
// resolves mentions.
func New(relayHost string, botDID func() string, sink Sink, opts ...Option) *Consumer {
	c := &Consumer{
		relayHost: relayHost,
		botDID:    botDID,
		sink:      sink,
		reconnect: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Named("firehose")
	}
	return c
}

// Run consumes until ctx ends, reconnecting after stream errors.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		err := c.consume(ctx)
		if ctx.Err() != nil {
			return nil
		}
		metrics.RecordErrorByComponent("firehose", "stream")
		c.log.Warn(ctx, "firehose stream ended, reconnecting",
			logger.Error(err), logger.Duration("delay", c.reconnect))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.reconnect):
		}
	}
}

func (c *Consumer) consume(ctx context.Context) error {
	u, err := url.Parse(c.relayHost)
	if err != nil {
		return fmt.Errorf("invalid relay host: %w", err)
	}
	u.Path = "xrpc/com.atproto.sync.subscribeRepos"
	c.log.Info(ctx, "subscribing to repo event stream", logger.String("upstream", c.relayHost))

	con, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), http.Header{
		"User-Agent": []string{httpclient.UserAgent()},
	})
	if err != nil {
		return fmt.Errorf("dial firehose: %w", err)
	}

	rsc := &events.RepoStreamCallbacks{
		RepoCommit: func(evt *comatproto.SyncSubscribeRepos_Commit) error {
			return c.handleCommit(ctx, evt)
		},
	}
	sched := sequential.NewScheduler(c.relayHost, rsc.EventHandler)
	if err := events.HandleRepoStream(ctx, con, sched, logger.Slog()); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// handleCommit never fails the stream; bad records are logged and skipped.
func (c *Consumer) handleCommit(ctx context.Context, evt *comatproto.SyncSubscribeRepos_Commit) error {
	if evt.TooBig {
		return nil
	}
	var rr *repo.Repo
	for _, op := range evt.Ops {
		if repomgr.EventKind(op.Action) != repomgr.EvtKindCreateRecord {
			continue
		}
		collection, rkey, ok := strings.Cut(op.Path, "/")
		if !ok || collection != model.PostCollection {
			continue
		}
		if rr == nil {
			var err error
			if rr, err = repo.ReadRepoFromCar(ctx, bytes.NewReader(evt.Blocks)); err != nil {
				c.log.Error(ctx, "failed to read repo from car", logger.String("did", evt.Repo), logger.Error(err))
				return nil
			}
		}
		rc, recordCBOR, err := rr.GetRecordBytes(ctx, op.Path)
		if err != nil {
			c.log.Error(ctx, "reading record from event blocks", logger.String("path", op.Path), logger.Error(err))
			continue
		}
		if op.Cid == nil || lexutil.LexLink(rc) != *op.Cid {
			c.log.Error(ctx, "commit op CID does not match record block", logger.String("path", op.Path))
			continue
		}
		var post appbsky.FeedPost
		if err := post.UnmarshalCBOR(bytes.NewReader(*recordCBOR)); err != nil {
			c.log.Error(ctx, "failed to parse post record", logger.String("path", op.Path), logger.Error(err))
			continue
		}
		metrics.RecordEventReceived("firehose")
		c.sink.Submit(ctx, ToEvent(evt.Repo, rkey, rc.String(), &post, c.botDID()))
	}
	return nil
}
