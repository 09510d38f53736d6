package spam_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/okian/affirmbot/internal/domain/model"
	"github.com/okian/affirmbot/internal/domain/spam"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeLookup struct {
	labels []string
	err    error
	calls  int
}

func (f *fakeLookup) Labels(_ context.Context, _ string) ([]string, error) {
	f.calls++
	return f.labels, f.err
}

type fakeQuotes struct {
	text  string
	err   error
	calls int
}

func (f *fakeQuotes) QuotedText(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.text, f.err
}

func post(text string) model.Event {
	return model.Event{ActorDID: "did:plc:alice", Collection: model.PostCollection, RecordKey: "k", Text: text}
}

func TestInspect(t *testing.T) {
	Convey("Given a default filter", t, func() {
		ctx := context.Background()
		lookup := &fakeLookup{}
		quotes := &fakeQuotes{}
		f := spam.New(lookup, quotes)

		Convey("When the text contains a keyword in any casing", func() {
			for _, k := range spam.DefaultKeywords {
				for _, variant := range []string{k, strings.ToUpper(k), strings.ToUpper(k[:1]) + k[1:]} {
					v, err := f.Inspect(ctx, post("please "+variant+" now"))
					So(err, ShouldBeNil)
					So(v.Allow, ShouldBeFalse)
					So(v.Reason, ShouldEqual, spam.ReasonText)
				}
			}

			Convey("Then no profile lookup is made", func() {
				So(lookup.calls, ShouldEqual, 0)
			})
		})

		Convey("When a follower posts a donation request", func() {
			v, err := f.Inspect(ctx, post("I donate to charity, paypal.me/x"))

			Convey("Then it is rejected before any network call", func() {
				So(err, ShouldBeNil)
				So(v.Allow, ShouldBeFalse)
				So(lookup.calls, ShouldEqual, 0)
				So(quotes.calls, ShouldEqual, 0)
			})
		})

		Convey("When the text is clean and the profile has no labels", func() {
			v, err := f.Inspect(ctx, post("had a lovely walk"))

			Convey("Then it is allowed", func() {
				So(err, ShouldBeNil)
				So(v.Allow, ShouldBeTrue)
				So(lookup.calls, ShouldEqual, 1)
			})
		})

		Convey("When a quoted post contains a keyword", func() {
			quotes.text = "Support me on GoFund.me"
			e := post("look at this")
			e.Embed = &model.Embed{QuotedURI: "at://did:plc:bob/app.bsky.feed.post/1"}
			v, err := f.Inspect(ctx, e)

			So(err, ShouldBeNil)
			So(v.Reason, ShouldEqual, spam.ReasonEmbed)
			So(quotes.calls, ShouldEqual, 1)
			So(lookup.calls, ShouldEqual, 0)
		})

		Convey("When an external link points at a keyword domain", func() {
			e := post("link")
			e.Embed = &model.Embed{URI: "https://PayPal.me/someone"}
			v, _ := f.Inspect(ctx, e)
			So(v.Reason, ShouldEqual, spam.ReasonEmbed)
		})

		Convey("When image alt text contains a keyword", func() {
			e := post("pic")
			e.Embed = &model.Embed{ImageAlt: "Donation QR code"}
			v, _ := f.Inspect(ctx, e)
			So(v.Reason, ShouldEqual, spam.ReasonEmbed)
		})

		Convey("When the quote cannot be resolved", func() {
			quotes.err = errors.New("timeout")
			e := post("look")
			e.Embed = &model.Embed{QuotedURI: "at://x/app.bsky.feed.post/1"}
			_, err := f.Inspect(ctx, e)
			So(errors.Is(err, model.ErrTransient), ShouldBeTrue)
		})

		Convey("When the profile carries a forbidden label", func() {
			lookup.labels = []string{"porn", "spam"}
			v, err := f.Inspect(ctx, post("hello"))
			So(err, ShouldBeNil)
			So(v.Reason, ShouldEqual, spam.ReasonLabel)
		})

		Convey("When the profile lookup fails", func() {
			lookup.err = errors.New("503")
			_, err := f.Inspect(ctx, post("hello"))
			So(errors.Is(err, model.ErrTransient), ShouldBeTrue)
		})
	})

	Convey("Given a filter with custom lists", t, func() {
		lookup := &fakeLookup{labels: []string{"spam"}}
		f := spam.New(lookup, nil, spam.WithKeywords([]string{" Crypto "}), spam.WithForbiddenLabels([]string{"impersonation"}))

		Convey("Then only the configured entries apply", func() {
			v, _ := f.Inspect(context.Background(), post("free CRYPTO"))
			So(v.Reason, ShouldEqual, spam.ReasonText)
			v, _ = f.Inspect(context.Background(), post("donate here"))
			So(v.Allow, ShouldBeTrue)
		})
	})
}
