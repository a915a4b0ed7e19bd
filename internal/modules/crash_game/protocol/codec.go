package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrEmptyMessage   = errors.New("empty message")
	ErrUnknownMessage = errors.New("unknown message type")
)

type envelope struct {
	Type Type        `json:"type"`
	Data interface{} `json:"data"`
}

// Encode wraps an outbound message into the {"type","data"} envelope
func Encode(msg Outbound) ([]byte, error) {
	switch m := msg.(type) {
	case Waiting:
		if m.History == nil {
			m.History = []HistoryEntry{}
		}
		return json.Marshal(envelope{Type: m.Type(), Data: m})
	case RoundEnd:
		if m.History == nil {
			m.History = []HistoryEntry{}
		}
		return json.Marshal(envelope{Type: m.Type(), Data: m})
	case RoundStart, BetConfirm, BetError, BetResult, BalanceUpdate:
		return json.Marshal(envelope{Type: m.Type(), Data: m})
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownMessage, msg)
	}
}

// rawInbound is the loose client shape; clients send numbers or numeric strings.
type rawInbound struct {
	Type          Type      `json:"type"`
	Action        string    `json:"action"`
	InitData      *string   `json:"init_data"`
	PanelID       flexFloat `json:"panelId"`
	Amount        flexFloat `json:"amount"`
	AutoCashoutAt flexFloat `json:"autoCashoutAt"`
	AutoBet       bool      `json:"autoBet"`
}

// DecodeInbound parses a client frame into one of Handshake, PlaceBet or CashOut
func DecodeInbound(raw []byte) (Inbound, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrEmptyMessage
	}

	var in rawInbound
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("decode inbound: %w", err)
	}

	if in.Action == ActionHandshake {
		if in.InitData == nil {
			return nil, fmt.Errorf("handshake without init_data")
		}
		return Handshake{InitData: *in.InitData}, nil
	}

	switch in.Type {
	case TypePlaceBet:
		if !in.PanelID.set || !in.Amount.set {
			return nil, fmt.Errorf("place_bet requires panelId and amount")
		}
		msg := PlaceBet{
			Panel:   int(in.PanelID.value),
			Amount:  in.Amount.value,
			AutoBet: in.AutoBet,
		}
		// zero or missing means no automatic cash-out
		if in.AutoCashoutAt.set && in.AutoCashoutAt.value != 0 {
			v := in.AutoCashoutAt.value
			msg.AutoCashoutAt = &v
		}
		return msg, nil
	case TypeCashOut:
		if !in.PanelID.set {
			return nil, fmt.Errorf("cash_out requires panelId")
		}
		return CashOut{Panel: int(in.PanelID.value)}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, in.Type)
	}
}

// flexFloat accepts 12, 12.5, "12.5" and null
type flexFloat struct {
	value float64
	set   bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", s)
	}
	f.value = v
	f.set = true
	return nil
}
