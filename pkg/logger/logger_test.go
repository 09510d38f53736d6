package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}
	if Slog() == nil {
		t.Fatal("slog logger is nil after initialization")
	}
}

func TestLoggerOutput(t *testing.T) {
	Convey("Given a logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(InitWithWriter(&buf, "text"), ShouldBeNil)
		ctx := context.Background()

		Convey("When logging with fields", func() {
			Get().Info(ctx, "reply sent", String("did", "did:plc:abc"), Int("attempt", 2))

			Convey("Then the fields and caller appear in the record", func() {
				out := buf.String()
				So(out, ShouldContainSubstring, "reply sent")
				So(out, ShouldContainSubstring, "did=did:plc:abc")
				So(out, ShouldContainSubstring, "attempt=2")
				So(out, ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When using a named logger with attached fields", func() {
			Named("dispatch").With(String("event", "bafy")).Warn(ctx, "retrying", Error(errors.New("boom")))

			Convey("Then the component and attached fields are present", func() {
				out := buf.String()
				So(out, ShouldContainSubstring, "component=dispatch")
				So(out, ShouldContainSubstring, "event=bafy")
				So(out, ShouldContainSubstring, "error=boom")
			})
		})

		Convey("When the context carries fields", func() {
			tctx := ContextWith(ctx, String("trace", "t-1"))
			tctx = ContextWith(tctx, String("event", "bafy"))
			Named("bsky").Info(tctx, "reply posted")
			Get().Warn(ctx, "no trace here")

			Convey("Then every entry logged with it includes them", func() {
				lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
				So(lines, ShouldHaveLength, 2)
				So(lines[0], ShouldContainSubstring, "trace=t-1")
				So(lines[0], ShouldContainSubstring, "event=bafy")
				So(lines[0], ShouldContainSubstring, "component=bsky")
				So(lines[1], ShouldNotContainSubstring, "trace=")
				So(ContextFields(tctx), ShouldHaveLength, 2)
				So(ContextFields(ctx), ShouldBeEmpty)
			})
		})

		Convey("When the level filters out debug", func() {
			So(SetLevelString("info"), ShouldBeNil)
			Get().Debug(ctx, "hidden")

			Convey("Then nothing is written", func() {
				So(strings.Contains(buf.String(), "hidden"), ShouldBeFalse)
			})
		})
	})
}

func TestLoggerJSONFormat(t *testing.T) {
	Convey("Given a JSON logger", t, func() {
		var buf bytes.Buffer
		So(InitWithWriter(&buf, "json"), ShouldBeNil)
		Get().Error(context.Background(), "failed", String("mode", "cheer"))

		Convey("Then records are JSON objects", func() {
			So(buf.String(), ShouldStartWith, "{")
			So(buf.String(), ShouldContainSubstring, `"mode":"cheer"`)
		})
	})

	Convey("Given an unknown format", t, func() {
		var buf bytes.Buffer
		So(InitWithWriter(&buf, "xml"), ShouldNotBeNil)
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level strings", t, func() {
		So(Init(), ShouldBeNil)
		So(SetLevelString("debug"), ShouldBeNil)
		So(SetLevelString("WARNING"), ShouldBeNil)
		So(SetLevelString(" error "), ShouldBeNil)
		So(SetLevelString(""), ShouldBeNil)
		So(SetLevelString("verbose"), ShouldNotBeNil)
	})
}
