package inference

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/mumuon/modelrunner/internal/modelrunner/common"
)

type fakeAssumer struct {
	calls  int
	expiry time.Time
	err    error
}

func (f *fakeAssumer) AssumeRole(ctx context.Context, roleARN string) (aws.Credentials, time.Time, error) {
	f.calls++
	if f.err != nil {
		return aws.Credentials{}, time.Time{}, f.err
	}
	return aws.Credentials{AccessKeyID: "AKID", SecretAccessKey: "secret"}, f.expiry, nil
}

func TestCredentialCacheRefreshesOncePerJob(t *testing.T) {
	assumer := &fakeAssumer{expiry: time.Now().Add(time.Hour)}
	cache := NewCredentialCache(assumer)

	if _, err := cache.Get(context.Background(), "role-a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := cache.Get(context.Background(), "role-a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if assumer.calls != 1 {
		t.Errorf("got %d assume-role calls, want 1", assumer.calls)
	}
}

func TestCredentialCacheRefreshesWithinSafetyMargin(t *testing.T) {
	assumer := &fakeAssumer{expiry: time.Now().Add(RefreshSafetyMargin - time.Minute)}
	cache := NewCredentialCache(assumer)

	if _, err := cache.Get(context.Background(), "role-a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := cache.Get(context.Background(), "role-a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if assumer.calls != 2 {
		t.Errorf("got %d assume-role calls, want 2 (cache should have refreshed)", assumer.calls)
	}
}

func TestCredentialCacheFailsWithInvalidAssumedRoleError(t *testing.T) {
	assumer := &fakeAssumer{err: errors.New("access denied")}
	cache := NewCredentialCache(assumer)

	_, err := cache.Get(context.Background(), "role-a")
	if err == nil {
		t.Fatal("expected an error")
	}
	var target *common.InvalidAssumedRoleError
	if !errors.As(err, &target) {
		t.Fatalf("got %T, want *common.InvalidAssumedRoleError", err)
	}
}
