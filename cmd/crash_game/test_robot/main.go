package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	authUseCase "github.com/Hollow93/social-casino/internal/modules/auth/usecase"
	"github.com/Hollow93/social-casino/pkg/logger"
	"github.com/gorilla/websocket"
)

// Config holds the robot configuration
type Config struct {
	Host      string
	BotToken  string
	UserCount int
	BaseID    int64
	BetMin    int
	BetMax    int
}

// Robot represents a simulated player
type Robot struct {
	ID     int
	UserID int64
	cfg    Config
	Conn   *websocket.Conn
	ctx    context.Context

	writeMu  sync.Mutex
	betRound bool // a bet was sent during the current countdown
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func main() {
	host := flag.String("host", "localhost:8081", "Server host address")
	users := flag.Int("users", 200, "Number of concurrent users")
	baseID := flag.Int64("base-id", 9_000_000_000, "First robot user id")
	flag.Parse()

	config := Config{
		Host:      *host,
		BotToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		UserCount: *users,
		BaseID:    *baseID,
		BetMin:    1,
		BetMax:    10,
	}

	logger.Init(logger.Config{
		Level:  "info",
		Format: "console",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if config.BotToken == "" {
		logger.Fatal(ctx).Msg("TELEGRAM_BOT_TOKEN is required to sign robot credentials")
	}

	logger.Info(ctx).
		Int("users", config.UserCount).
		Str("host", config.Host).
		Msg("🤖 Starting Test Robot")

	var wg sync.WaitGroup
	for i := 0; i < config.UserCount; i++ {
		time.Sleep(20 * time.Millisecond)
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			robot := NewRobot(ctx, id, config)
			if err := robot.Run(); err != nil {
				logger.Error(ctx).Int("robot_id", id).Err(err).Msg("Robot failed")
			}
		}(i + 1)
	}

	<-ctx.Done()
	logger.Info(ctx).Msg("🛑 Stopping robots...")
	wg.Wait()
}

func NewRobot(ctx context.Context, id int, cfg Config) *Robot {
	userID := cfg.BaseID + int64(id)
	return &Robot{
		ID:     id,
		UserID: userID,
		cfg:    cfg,
		ctx:    logger.WithUser(ctx, userID),
	}
}

// initData builds a freshly signed credential for this robot
func (r *Robot) initData() string {
	user, _ := json.Marshal(map[string]interface{}{
		"id":       r.UserID,
		"username": fmt.Sprintf("robot_%d", r.ID),
	})
	vals := url.Values{}
	vals.Set("user", string(user))
	vals.Set("auth_date", strconv.FormatInt(time.Now().Unix(), 10))
	vals.Set("start_param", "test_robot")
	return authUseCase.SignInitData(r.cfg.BotToken, vals)
}

func (r *Robot) Run() error {
	// Half the robots use the handshake frame instead of the query parameter
	useHandshake := r.ID%2 == 0

	u := url.URL{Scheme: "ws", Host: r.cfg.Host, Path: "/ws"}
	if !useHandshake {
		u.RawQuery = url.Values{"initData": {r.initData()}}.Encode()
	}

	c, _, err := websocket.DefaultDialer.DialContext(r.ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("websocket connect failed: %w", err)
	}
	r.Conn = c
	defer r.Conn.Close()

	if useHandshake {
		if err := r.write(map[string]interface{}{"action": "handshake", "init_data": r.initData()}); err != nil {
			return fmt.Errorf("handshake failed: %w", err)
		}
	}
	logger.Info(r.ctx).Int("robot_id", r.ID).Bool("handshake", useHandshake).Msg("Robot connected")

	go func() {
		<-r.ctx.Done()
		r.Conn.Close()
	}()
	return r.ListenLoop()
}

func (r *Robot) write(v interface{}) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.Conn.WriteJSON(v)
}

func (r *Robot) ListenLoop() error {
	for {
		_, message, err := r.Conn.ReadMessage()
		if err != nil {
			if r.ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		var msg envelope
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Warn(r.ctx).Int("robot_id", r.ID).Err(err).Msg("Failed to parse message")
			continue
		}

		switch msg.Type {
		case "waiting":
			if !r.betRound {
				r.betRound = true
				go r.PlaceBets()
			}
		case "round_start":
			r.betRound = false
			go r.MaybeCashOut()
		case "round_end":
			var data struct {
				CrashPoint float64 `json:"crashPoint"`
			}
			_ = json.Unmarshal(msg.Data, &data)
			logger.Debug(r.ctx).Int("robot_id", r.ID).Float64("crash_point", data.CrashPoint).Msg("Saw crash")
		case "bet_error":
			logger.Info(r.ctx).Int("robot_id", r.ID).RawJSON("data", msg.Data).Msg("Bet rejected")
		case "bet_result":
			logger.Info(r.ctx).Int("robot_id", r.ID).RawJSON("data", msg.Data).Msg("Bet settled")
		}
	}
}

// PlaceBets stakes panel 0 with an auto cash-out and panel 1 for a manual cash-out
func (r *Robot) PlaceBets() {
	time.Sleep(time.Duration(rand.Intn(3000)) * time.Millisecond)

	auto := 1.1 + rand.Float64()*3
	bets := []map[string]interface{}{
		{"type": "place_bet", "panelId": 0, "amount": r.amount(), "autoCashoutAt": float64(int(auto*100)) / 100},
		{"type": "place_bet", "panelId": 1, "amount": r.amount()},
	}
	for _, bet := range bets {
		if err := r.write(bet); err != nil {
			logger.Error(r.ctx).Int("robot_id", r.ID).Err(err).Msg("Failed to place bet")
			return
		}
	}
}

// MaybeCashOut cashes panel 1 out after a random flight time; sometimes too late
func (r *Robot) MaybeCashOut() {
	time.Sleep(time.Duration(500+rand.Intn(8000)) * time.Millisecond)
	if err := r.write(map[string]interface{}{"type": "cash_out", "panelId": 1}); err != nil {
		logger.Error(r.ctx).Int("robot_id", r.ID).Err(err).Msg("Failed to cash out")
	}
}

func (r *Robot) amount() int {
	return r.cfg.BetMin + rand.Intn(r.cfg.BetMax-r.cfg.BetMin+1)
}
