package services

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/wenlng/go-captcha/v2/rotate"
)

// CaptchaService generates and verifies rotate captchas for support
// sign-in. Challenges live in Redis when a client is configured so
// verification works across replicas; otherwise an in-memory store
// with TTL is used.
type CaptchaService interface {
	// GenerateRotate creates a rotate captcha challenge and returns the assets and challenge ID
	GenerateRotate(ctx context.Context) (*RotateChallenge, error)
	// VerifyRotate verifies the provided user angle for a given challenge ID
	VerifyRotate(ctx context.Context, challengeID string, userAngle float64) bool
}

type RotateChallenge struct {
	ID                string
	MasterImageBase64 string
	ThumbImageBase64  string
	ThumbSize         int
}

type captchaServiceImpl struct {
	rotator     rotate.Captcha
	redisClient *redis.Client
	local       *angleStore
	ttl         time.Duration
	padding     int // tolerance for angle validation
	imgSizePx   int
}

const captchaKeyPrefix = "captcha:rotate:"

// NewCaptchaServiceRotate constructs a CaptchaService using rotate mode.
// ttl: time window during which a challenge remains valid
// padding: acceptable angle difference (degrees) when validating
// imgSizePx: square size for generated images (e.g., 220)
func NewCaptchaServiceRotate(redisClient *redis.Client, ttl time.Duration, padding int, imgSizePx int) (CaptchaService, error) {
	if imgSizePx <= 0 {
		imgSizePx = 220
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}

	builder := rotate.NewBuilder(
		rotate.WithImageSquareSize(imgSizePx),
	)
	builder.SetResources(
		rotate.WithImages(generateRotateBackgrounds(3, imgSizePx)),
	)
	rotator := builder.Make()

	return &captchaServiceImpl{
		rotator:     rotator,
		redisClient: redisClient,
		local:       newAngleStore(ttl),
		ttl:         ttl,
		padding:     padding,
		imgSizePx:   imgSizePx,
	}, nil
}

func (s *captchaServiceImpl) GenerateRotate(ctx context.Context) (*RotateChallenge, error) {
	captData, err := s.rotator.Generate()
	if err != nil {
		return nil, err
	}

	block := captData.GetData()
	if block == nil {
		return nil, fmt.Errorf("captcha generation returned no data")
	}

	masterB64, err := captData.GetMasterImage().ToBase64()
	if err != nil {
		return nil, err
	}
	thumbB64, err := captData.GetThumbImage().ToBase64()
	if err != nil {
		return nil, err
	}

	challengeID := uuid.New().String()
	if err := s.storeAngle(ctx, challengeID, block.Angle); err != nil {
		return nil, err
	}

	return &RotateChallenge{
		ID:                challengeID,
		MasterImageBase64: masterB64,
		ThumbImageBase64:  thumbB64,
		ThumbSize:         s.imgSizePx,
	}, nil
}

func (s *captchaServiceImpl) VerifyRotate(ctx context.Context, challengeID string, userAngle float64) bool {
	targetAngle, ok := s.loadAndConsumeAngle(ctx, challengeID)
	if !ok {
		return false
	}

	ua := int(math.Round(userAngle))
	return rotate.Validate(ua, targetAngle, s.padding)
}

func (s *captchaServiceImpl) storeAngle(ctx context.Context, challengeID string, angle int) error {
	if s.redisClient != nil {
		return s.redisClient.Set(ctx, captchaKeyPrefix+challengeID, angle, s.ttl).Err()
	}
	s.local.Set(challengeID, angle)
	return nil
}

// loadAndConsumeAngle fetches the target angle and deletes the
// challenge so each one can be answered at most once.
func (s *captchaServiceImpl) loadAndConsumeAngle(ctx context.Context, challengeID string) (int, bool) {
	if s.redisClient != nil {
		key := captchaKeyPrefix + challengeID
		angle, err := s.redisClient.GetDel(ctx, key).Int()
		if err != nil {
			return 0, false
		}
		return angle, true
	}
	return s.local.Consume(challengeID)
}

// --- In-memory fallback store with TTL ---

type angleEntry struct {
	angle     int
	expiresAt time.Time
}

type angleStore struct {
	mu  sync.Mutex
	m   map[string]angleEntry
	ttl time.Duration
}

func newAngleStore(ttl time.Duration) *angleStore {
	return &angleStore{
		m:   make(map[string]angleEntry),
		ttl: ttl,
	}
}

func (s *angleStore) Set(id string, angle int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for k, e := range s.m {
		if now.After(e.expiresAt) {
			delete(s.m, k)
		}
	}
	s.m[id] = angleEntry{angle: angle, expiresAt: now.Add(s.ttl)}
}

func (s *angleStore) Consume(id string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.m[id]
	if !ok {
		return 0, false
	}
	delete(s.m, id)
	if time.Now().After(e.expiresAt) {
		return 0, false
	}
	return e.angle, true
}

// generateRotateBackgrounds builds simple procedural background images
// so the binary ships without bundled assets.
func generateRotateBackgrounds(n int, size int) []image.Image {
	images := make([]image.Image, 0, n)
	for i := 0; i < n; i++ {
		images = append(images, newNoiseGradientImage(size, size))
	}
	return images
}

func newNoiseGradientImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	base := color.RGBA{
		R: uint8(80 + rand.Intn(120)),
		G: uint8(80 + rand.Intn(120)),
		B: uint8(80 + rand.Intn(120)),
		A: 255,
	}
	draw.Draw(img, img.Bounds(), &image.Uniform{C: base}, image.Point{}, draw.Src)

	for i := 0; i < 40; i++ {
		c := color.RGBA{
			R: uint8(rand.Intn(256)),
			G: uint8(rand.Intn(256)),
			B: uint8(rand.Intn(256)),
			A: uint8(40 + rand.Intn(80)),
		}
		x := rand.Intn(w)
		y := rand.Intn(h)
		bw := 4 + rand.Intn(w/4)
		bh := 4 + rand.Intn(h/4)
		drawRect(img, x, y, bw, bh, c)
	}
	return img
}

func drawRect(dst *image.RGBA, x, y, w, h int, c color.RGBA) {
	for dy := 0; dy < h; dy++ {
		for dx := 0; dx < w; dx++ {
			px, py := x+dx, y+dy
			if px >= 0 && px < dst.Bounds().Dx() && py >= 0 && py < dst.Bounds().Dy() {
				dst.Set(px, py, c)
			}
		}
	}
}
