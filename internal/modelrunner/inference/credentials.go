package inference

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/mumuon/modelrunner/internal/modelrunner/common"
)

// RoleAssumer obtains short-lived credentials for an execution role. The
// real implementation wraps STS AssumeRole; tests substitute a fake. Kept
// behind this interface because live AWS identity services are an external
// collaborator, not part of this module's core.
type RoleAssumer interface {
	AssumeRole(ctx context.Context, roleARN string) (aws.Credentials, time.Time, error)
}

// RefreshSafetyMargin is how far ahead of expiry cached credentials are
// refreshed.
const RefreshSafetyMargin = 5 * time.Minute

// CredentialCache obtains and caches assumed-role credentials once per job,
// refreshing when within RefreshSafetyMargin of expiry.
type CredentialCache struct {
	assumer RoleAssumer

	mu      sync.Mutex
	roleARN string
	creds   aws.Credentials
	expiry  time.Time
}

func NewCredentialCache(assumer RoleAssumer) *CredentialCache {
	return &CredentialCache{assumer: assumer}
}

// Get returns cached credentials for roleARN, refreshing if absent or
// within the safety margin of expiry. Returns an InvalidAssumedRoleError if
// the role cannot be assumed; SMDetector counts that as a failed call.
func (c *CredentialCache) Get(ctx context.Context, roleARN string) (aws.Credentials, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.roleARN == roleARN && time.Until(c.expiry) > RefreshSafetyMargin {
		return c.creds, nil
	}

	creds, expiry, err := c.assumer.AssumeRole(ctx, roleARN)
	if err != nil {
		return aws.Credentials{}, &common.InvalidAssumedRoleError{RoleARN: roleARN, Err: err}
	}
	c.roleARN = roleARN
	c.creds = creds
	c.expiry = expiry
	return creds, nil
}
