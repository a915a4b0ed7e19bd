// Package protocol defines every message exchanged over the crash game socket.
// Both directions are closed sets: decoding yields one of the inbound structs,
// encoding accepts only the outbound structs declared here.
package protocol

// Type is the wire tag of a message
type Type string

// Inbound message tags
const (
	TypePlaceBet Type = "place_bet"
	TypeCashOut  Type = "cash_out"

	// ActionHandshake is carried in the "action" field, not "type"
	ActionHandshake = "handshake"
)

// Outbound message tags
const (
	TypeWaiting       Type = "waiting"
	TypeRoundStart    Type = "round_start"
	TypeRoundEnd      Type = "round_end"
	TypeBetConfirm    Type = "bet_confirm"
	TypeBetError      Type = "bet_error"
	TypeBetResult     Type = "bet_result"
	TypeBalanceUpdate Type = "balance_update"
)

// Inbound is a message sent by a client
type Inbound interface {
	inbound()
}

// Handshake carries the credential when it was not passed as a query parameter
type Handshake struct {
	InitData string
}

// PlaceBet asks to stake Amount on a panel for the next round
type PlaceBet struct {
	Panel         int
	Amount        float64
	AutoCashoutAt *float64
	AutoBet       bool
}

// CashOut asks to settle the bet on a panel at the live multiplier
type CashOut struct {
	Panel int
}

func (Handshake) inbound() {}
func (PlaceBet) inbound()  {}
func (CashOut) inbound()   {}

// Outbound is a message sent by the server
type Outbound interface {
	Type() Type
}

// HistoryEntry is the public part of a finished round
type HistoryEntry struct {
	Multiplier float64 `json:"multiplier"`
}

// RoundInfo identifies a finished round by commitment and nonce. ServerSeed is
// only set once the seed has been retired.
type RoundInfo struct {
	Multiplier       float64 `json:"multiplier"`
	ServerSeed       string  `json:"serverSeed,omitempty"`
	HashedServerSeed string  `json:"hashedServerSeed"`
	Nonce            int     `json:"nonce"`
}

// RetiredSeed reveals a seed after rotation so every round it produced,
// nonce 1 through LastNonce, can be recomputed
type RetiredSeed struct {
	ServerSeed       string `json:"serverSeed"`
	HashedServerSeed string `json:"hashedServerSeed"`
	LastNonce        int    `json:"lastNonce"`
}

type Waiting struct {
	Countdown        int            `json:"countdown"`
	History          []HistoryEntry `json:"history"`
	HashedServerSeed string         `json:"hashedServerSeed"`
	IsInitialSync    bool           `json:"isInitialSync,omitempty"`
}

type RoundStart struct {
	// StartTime is unix seconds with millisecond precision
	StartTime     float64        `json:"startTime"`
	History       []HistoryEntry `json:"history,omitempty"`
	IsInitialSync bool           `json:"isInitialSync,omitempty"`
}

type RoundEnd struct {
	CrashPoint  float64        `json:"crashPoint"`
	History     []HistoryEntry `json:"history"`
	RoundInfo   RoundInfo      `json:"roundInfo"`
	RetiredSeed *RetiredSeed   `json:"retiredSeed,omitempty"`
}

type BetConfirm struct {
	PanelID int `json:"panelId"`
}

type BetError struct {
	PanelID int    `json:"panelId"`
	Message string `json:"message"`
}

type BetResult struct {
	PanelID     int      `json:"panelId"`
	WinAmount   float64  `json:"winAmount"`
	CashedOutAt *float64 `json:"cashedOutAt"`
}

type BalanceUpdate struct {
	Balance float64 `json:"balance"`
}

func (Waiting) Type() Type       { return TypeWaiting }
func (RoundStart) Type() Type    { return TypeRoundStart }
func (RoundEnd) Type() Type      { return TypeRoundEnd }
func (BetConfirm) Type() Type    { return TypeBetConfirm }
func (BetError) Type() Type      { return TypeBetError }
func (BetResult) Type() Type     { return TypeBetResult }
func (BalanceUpdate) Type() Type { return TypeBalanceUpdate }
