package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/keithshino/accountUnlock/app/dto"
	"github.com/keithshino/accountUnlock/repository"
	"github.com/redis/go-redis/v9"
)

// profileCacheTTL bounds how stale a cached profile may get.
const profileCacheTTL = 5 * time.Minute

// ProfileFlow returns the signed-in user's profile
type ProfileFlow interface {
	GetProfile(ctx context.Context, userID uint) (*dto.GetProfileResponse, error)
	InvalidateProfile(ctx context.Context, userID uint)
}

// ProfileFlowImpl implements the profile business flow
type ProfileFlowImpl struct {
	userRepo    repository.UserRepository
	redisClient *redis.Client
}

// NewProfileFlow creates a new profile flow instance
func NewProfileFlow(userRepo repository.UserRepository, redisClient *redis.Client) ProfileFlow {
	return &ProfileFlowImpl{
		userRepo:    userRepo,
		redisClient: redisClient,
	}
}

func profileCacheKey(userID uint) string {
	return fmt.Sprintf("profile:%d", userID)
}

// GetProfile loads the profile, serving from Redis when possible
func (pf *ProfileFlowImpl) GetProfile(ctx context.Context, userID uint) (*dto.GetProfileResponse, error) {
	if pf.redisClient != nil {
		cached, err := pf.redisClient.Get(ctx, profileCacheKey(userID)).Bytes()
		if err == nil {
			var profile dto.ProfileDTO
			if json.Unmarshal(cached, &profile) == nil {
				return &dto.GetProfileResponse{Message: "Profile fetched", User: profile}, nil
			}
		}
	}

	user, err := pf.userRepo.ByID(ctx, userID)
	if err != nil {
		return nil, NewBusinessError("PROFILE_FETCH_FAILED", "Failed to fetch profile", err)
	}
	if user == nil {
		return nil, NewBusinessError("USER_NOT_FOUND", "User not found", ErrUserNotFound)
	}

	profile := ToProfileDTO(*user)

	if pf.redisClient != nil {
		if payload, err := json.Marshal(profile); err == nil {
			_ = pf.redisClient.Set(ctx, profileCacheKey(userID), payload, profileCacheTTL).Err()
		}
	}

	return &dto.GetProfileResponse{Message: "Profile fetched", User: profile}, nil
}

// InvalidateProfile drops the cached profile after auth events
func (pf *ProfileFlowImpl) InvalidateProfile(ctx context.Context, userID uint) {
	if pf.redisClient == nil {
		return
	}
	_ = pf.redisClient.Del(ctx, profileCacheKey(userID)).Err()
}
