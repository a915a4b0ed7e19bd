// Package fair derives crash points from a committed server seed.
//
// The server seed is kept secret while it is in use and only its sha256 digest
// is published. Every round consumes one nonce; once the seed is retired it is
// revealed so anyone can recompute each crash point with CrashPoint.
package fair

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultHouseEdge   = 0.03
	DefaultClientSeed  = "social-casino-is-awesome-and-fair"
	DefaultSeedCeiling = 2000

	// GrowthRate is k in multiplier = e^(k*t), t in seconds
	GrowthRate = 0.06
)

const outcomes = float64(1 << 32)

// Seed is the commitment currently in use
type Seed struct {
	ServerSeed       string
	HashedServerSeed string
	Nonce            int
}

// Engine owns the seed and nonce. It is not safe for concurrent use; the
// round scheduler is its only caller.
type Engine struct {
	houseEdge  float64
	clientSeed string
	ceiling    int

	seed    Seed
	newSeed func() string
}

// NewEngine creates an engine with a freshly rotated seed
func NewEngine(houseEdge float64, clientSeed string, ceiling int) *Engine {
	if clientSeed == "" {
		clientSeed = DefaultClientSeed
	}
	if ceiling <= 0 {
		ceiling = DefaultSeedCeiling
	}
	e := &Engine{
		houseEdge:  houseEdge,
		clientSeed: clientSeed,
		ceiling:    ceiling,
		newSeed:    randomSeed,
	}
	e.RotateSeeds()
	return e
}

func randomSeed() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// HashSeed returns the public digest of a server seed
func HashSeed(serverSeed string) string {
	sum := sha256.Sum256([]byte(serverSeed))
	return hex.EncodeToString(sum[:])
}

// RotateSeeds replaces the server seed and resets the nonce
func (e *Engine) RotateSeeds() {
	seed := e.newSeed()
	for seed == e.seed.ServerSeed {
		seed = e.newSeed()
	}
	e.seed = Seed{
		ServerSeed:       seed,
		HashedServerSeed: HashSeed(seed),
		Nonce:            0,
	}
}

// RotateIfExhausted rotates once the nonce has reached the ceiling and returns
// the retired seed, which no longer drives any round and may be revealed.
// Must only be called between rounds.
func (e *Engine) RotateIfExhausted() (Seed, bool) {
	if e.seed.Nonce < e.ceiling {
		return Seed{}, false
	}
	retired := e.seed
	e.RotateSeeds()
	return retired, true
}

// Seed returns a copy of the current commitment, secret included. The secret
// must not leave the process until RotateIfExhausted retires it.
func (e *Engine) Seed() Seed {
	return e.seed
}

// HashedServerSeed is the digest safe to publish
func (e *Engine) HashedServerSeed() string {
	return e.seed.HashedServerSeed
}

func (e *Engine) HouseEdge() float64 {
	return e.houseEdge
}

func (e *Engine) ClientSeed() string {
	return e.clientSeed
}

// CalculateCrashPoint consumes the next nonce and returns the crash point for it
func (e *Engine) CalculateCrashPoint() (float64, int) {
	e.seed.Nonce++
	return CrashPoint(e.seed.ServerSeed, e.clientSeed, e.seed.Nonce, e.houseEdge), e.seed.Nonce
}

// CrashPoint is the pure derivation used for both play and verification:
// X = first 32 bits of HMAC-SHA256(serverSeed, "{clientSeed}-{nonce}").
func CrashPoint(serverSeed, clientSeed string, nonce int, houseEdge float64) float64 {
	mac := hmac.New(sha256.New, []byte(serverSeed))
	mac.Write([]byte(fmt.Sprintf("%s-%d", clientSeed, nonce)))
	x := float64(binary.BigEndian.Uint32(mac.Sum(nil)[:4]))

	if x < outcomes*houseEdge {
		return 1.00
	}

	point := ((1 - houseEdge) * outcomes) / (outcomes - x)
	return math.Max(1.00, math.Floor(point*100)/100)
}

// Verification is the recomputed outcome for a revealed seed
type Verification struct {
	ServerSeed       string  `json:"serverSeed"`
	HashedServerSeed string  `json:"hashedServerSeed"`
	ClientSeed       string  `json:"clientSeed"`
	Nonce            int     `json:"nonce"`
	CrashPoint       float64 `json:"crashPoint"`
}

// Verify recomputes a past round with this engine's client seed and house edge
func (e *Engine) Verify(serverSeed string, nonce int) Verification {
	return Verification{
		ServerSeed:       serverSeed,
		HashedServerSeed: HashSeed(serverSeed),
		ClientSeed:       e.clientSeed,
		Nonce:            nonce,
		CrashPoint:       CrashPoint(serverSeed, e.clientSeed, nonce, e.houseEdge),
	}
}

// MultiplierFromDuration maps seconds since round start to the live multiplier
func MultiplierFromDuration(seconds float64) float64 {
	if seconds < 0 {
		return 1.0
	}
	return math.Exp(GrowthRate * seconds)
}

// DurationFromMultiplier is the inverse of MultiplierFromDuration
func DurationFromMultiplier(multiplier float64) float64 {
	if multiplier < 1.0 {
		return 0
	}
	return math.Log(multiplier) / GrowthRate
}

// MultiplierAt is MultiplierFromDuration for a wall-clock interval
func MultiplierAt(elapsed time.Duration) float64 {
	return MultiplierFromDuration(elapsed.Seconds())
}

// TimeToReach is DurationFromMultiplier as a time.Duration
func TimeToReach(multiplier float64) time.Duration {
	return time.Duration(DurationFromMultiplier(multiplier) * float64(time.Second))
}
