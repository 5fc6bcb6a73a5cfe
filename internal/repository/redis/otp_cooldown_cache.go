package redis

import (
	"context"
	"fmt"
	"time"

	"onboarding-service/internal/client"
)

// OTPCooldownCache enforces the minimum gap between OTP sends. The key is
// claimed with SetNX before the gateway is called; a failed claim means a
// send happened within the window and no counter may move.
type OTPCooldownCache interface {
	Claim(ctx context.Context, scope, id string, window time.Duration) (bool, error)
	Remaining(ctx context.Context, scope, id string) (time.Duration, error)
	Release(ctx context.Context, scope, id string) error
}

type otpCooldownCache struct {
	client *client.RedisClient
}

func NewOTPCooldownCache(c *client.RedisClient) OTPCooldownCache {
	return &otpCooldownCache{client: c}
}

func cooldownKey(scope, id string) string {
	return fmt.Sprintf("otp:cooldown:%s:%s", scope, id)
}

func (c *otpCooldownCache) Claim(ctx context.Context, scope, id string, window time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, cooldownKey(scope, id), time.Now().UTC().Unix(), window)
	if err != nil {
		return false, fmt.Errorf("cooldown claim failed: %w", err)
	}
	return ok, nil
}

func (c *otpCooldownCache) Remaining(ctx context.Context, scope, id string) (time.Duration, error) {
	ttl, err := c.client.TTL(ctx, cooldownKey(scope, id))
	if err != nil {
		return 0, fmt.Errorf("cooldown ttl failed: %w", err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// Release frees the claim when the gateway send fails, so the user is not
// locked out of resending for the full window by a delivery error.
func (c *otpCooldownCache) Release(ctx context.Context, scope, id string) error {
	return c.client.Del(ctx, cooldownKey(scope, id))
}
