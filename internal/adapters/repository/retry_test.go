package repository

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestIsContention(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"non-transient", errors.New("syntax error"), false},
		{"SQLITE_BUSY text", errors.New("SQLITE_BUSY"), true},
		{"SQLITE_LOCKED text", errors.New("SQLITE_LOCKED"), true},
		{"IOERR_SHORT_READ text", errors.New("IOERR_SHORT_READ"), true},
		{"database is locked", errors.New("database is locked"), true},
		{"database table is locked", errors.New("database table is locked"), true},
		{"code 5", errors.New("sqlite: (5) database is busy"), true},
		{"code 6", errors.New("sqlite: (6) table is locked"), true},
		{"code 522", errors.New("sqlite: (522) short read"), true},
		{"wrapped busy", errors.New("exec: SQLITE_BUSY: db locked"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isContention(tt.err); got != tt.want {
				t.Errorf("isContention(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

var fastRetry = retryConfig{maxRetries: 3, baseDelay: time.Millisecond, maxDelay: 5 * time.Millisecond}

func TestRetryOpSucceedsImmediately(t *testing.T) {
	calls := 0
	err := retryOp(context.Background(), fastRetry, func() error {
		calls++
		return nil
	})
	if err != nil || calls != 1 {
		t.Fatalf("err=%v calls=%d, want nil and 1", err, calls)
	}
}

func TestRetryOpRecoversFromContention(t *testing.T) {
	calls := 0
	err := retryOp(context.Background(), fastRetry, func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("err=%v calls=%d, want nil and 3", err, calls)
	}
}

func TestRetryOpStopsOnOtherErrors(t *testing.T) {
	calls := 0
	err := retryOp(context.Background(), fastRetry, func() error {
		calls++
		return errors.New("constraint failed")
	})
	if err == nil || calls != 1 {
		t.Fatalf("err=%v calls=%d, want error after 1 call", err, calls)
	}
}

func TestRetryOpExhausts(t *testing.T) {
	calls := 0
	err := retryOp(context.Background(), fastRetry, func() error {
		calls++
		return errors.New("SQLITE_BUSY")
	})
	if err == nil || calls != fastRetry.maxRetries+1 {
		t.Fatalf("err=%v calls=%d, want error after %d calls", err, calls, fastRetry.maxRetries+1)
	}
}

func TestRetryOpHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_ = retryOp(ctx, defaultRetryConfig, func() error {
		calls++
		return errors.New("SQLITE_BUSY")
	})
	if calls != 1 {
		t.Fatalf("calls=%d, want 1", calls)
	}
}

func TestBackoffDelayCapped(t *testing.T) {
	for attempt := 0; attempt < 10; attempt++ {
		d := backoffDelay(defaultRetryConfig, attempt)
		if d > defaultRetryConfig.maxDelay+defaultRetryConfig.baseDelay {
			t.Fatalf("attempt %d: delay %v exceeds cap", attempt, d)
		}
	}
}
