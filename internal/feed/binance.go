package feed

import (
	"context"
	"fmt"
	"strings"

	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"
)

const _binanceBaseWsUrl = "wss://stream.binance.com:9443/ws"

// BinanceKlines streams kline events from the Binance public websocket.
type BinanceKlines struct {
	wss *ws.WebSocket
}

func NewBinanceKlines(ctx context.Context) *BinanceKlines {
	return &BinanceKlines{
		wss: ws.New(ctx, _binanceBaseWsUrl),
	}
}

func (repo *BinanceKlines) Len() int {
	return repo.wss.Len()
}

func (repo *BinanceKlines) Close() {
	repo.wss.Close()
}

func (repo *BinanceKlines) Start(ctx context.Context) error {
	if err := repo.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start wss")
	}

	return nil
}

type binanceSubscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

type binanceSubscribeResponse struct {
	ID     int64 `json:"id"`
	Result any   `json:"result"`
}

func subscribeResponseParser(m ws.Message) (binanceSubscribeResponse, bool) {
	var resp binanceSubscribeResponse
	err := m.Unmarshal(&resp)
	return resp, err == nil
}

// SubscribeKline subscribes the 'Kline/Candlestick Stream' for one
// symbol and bar interval (1m, 5m, ...).
func (repo *BinanceKlines) SubscribeKline(ctx context.Context, symbol, interval string) error {
	appendIntoRegister := true
	if err := repo.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, ws *ws.WebSocket) error {
			payload := binanceSubscribeRequest{
				Method: "SUBSCRIBE",
				Params: []string{
					fmt.Sprintf("%s@kline_%s", strings.ToLower(symbol), interval),
				},
				ID: 1,
			}

			if err := ws.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload").With("payload", payload)
			}

			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			resp, ok := subscribeResponseParser(m)
			if !ok || resp.ID != 1 {
				return false, nil
			}

			if resp.Result != nil {
				return false, errors.Errorf("subscribe and wait, err: %+v", resp.Result)
			}
			return true, nil
		},
	}, appendIntoRegister); err != nil {
		return errors.Wrap(err, "send and wait")
	}

	return nil
}

type BinanceKline struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Bar       struct {
		StartTime int64           `json:"t"`
		CloseTime int64           `json:"T"`
		Symbol    string          `json:"s"`
		Interval  string          `json:"i"`
		Open      decimal.Decimal `json:"o"`
		Close     decimal.Decimal `json:"c"`
		High      decimal.Decimal `json:"h"`
		Low       decimal.Decimal `json:"l"`
		Volume    decimal.Decimal `json:"v"`
		Closed    bool            `json:"x"`
	} `json:"k"`
}

func (repo *BinanceKlines) ObserveKline(ctx context.Context, handler func(k BinanceKline)) (unsubscribe func()) {
	ch, cancel := repo.wss.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}

				resp, ok := ws.ReadMessage[BinanceKline](m)
				if !ok || resp.EventType != "kline" {
					continue
				}

				handler(resp)
			}
		}
	}()

	return cancel
}

// Pump forwards bar-close events into the sink until the stream ends.
func (repo *BinanceKlines) Pump(ctx context.Context, sink Sink) (unsubscribe func()) {
	return repo.ObserveKline(ctx, func(k BinanceKline) {
		if !k.Bar.Closed {
			return
		}
		sink.OnMarketData("kline", k)
	})
}
