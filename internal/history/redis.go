package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/wonny/strikegate/internal/contracts"
	"github.com/wonny/strikegate/pkg/redis"
)

// RedisStore history shared across validator instances
//
// Keys:
//
//	{prefix}:history:trades:{symbol}   list of TradeRecord JSON, oldest first
//	{prefix}:history:regime:{symbol}   regime label
//	{prefix}:history:verdicts:{type}   hash verdict -> count
//	{prefix}:history:checks            hash "{id}:runs|passes|timed_out" -> count
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisStore creates a store; now may be nil (time.Now)
func NewRedisStore(client *redis.Client, prefix string, now func() time.Time) (*RedisStore, error) {
	if client == nil || !client.Enabled() {
		return nil, fmt.Errorf("history redis store: %w", contracts.ErrUnavailable)
	}
	if now == nil {
		now = time.Now
	}
	return &RedisStore{client: client, prefix: prefix, now: now}, nil
}

func (s *RedisStore) tradesKey(symbol string) string {
	return fmt.Sprintf("%s:history:trades:%s", s.prefix, symbol)
}

func (s *RedisStore) regimeKey(symbol string) string {
	return fmt.Sprintf("%s:history:regime:%s", s.prefix, symbol)
}

func (s *RedisStore) verdictsKey(t contracts.StrikeType) string {
	return fmt.Sprintf("%s:history:verdicts:%s", s.prefix, t)
}

func (s *RedisStore) checksKey() string {
	return s.prefix + ":history:checks"
}

// Snapshot implements contracts.HistoryReader
func (s *RedisStore) Snapshot(ctx context.Context, symbol string, strikeType contracts.StrikeType) (contracts.HistorySnapshot, error) {
	rdb := s.client.Redis()

	raw, err := rdb.LRange(ctx, s.tradesKey(symbol), 0, -1).Result()
	if err != nil {
		return contracts.HistorySnapshot{}, fmt.Errorf("history trades %s: %w", symbol, err)
	}
	trades := make([]TradeRecord, 0, len(raw))
	for _, r := range raw {
		var t TradeRecord
		if err := json.Unmarshal([]byte(r), &t); err != nil {
			return contracts.HistorySnapshot{}, fmt.Errorf("history trade decode: %w", err)
		}
		trades = append(trades, t)
	}

	regime, err := rdb.Get(ctx, s.regimeKey(symbol)).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return contracts.HistorySnapshot{}, fmt.Errorf("history regime %s: %w", symbol, err)
	}

	fields, err := rdb.HGetAll(ctx, s.verdictsKey(strikeType)).Result()
	if err != nil {
		return contracts.HistorySnapshot{}, fmt.Errorf("history verdicts %s: %w", strikeType, err)
	}

	return buildSnapshot(symbol, trades, parseVerdicts(fields), contracts.MarketRegime(regime), s.now()), nil
}

// RecordReport counts the verdict and per-check outcomes in one pipeline
func (s *RedisStore) RecordReport(ctx context.Context, strike contracts.Strike, report *contracts.Report) error {
	_, err := s.client.Redis().Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HIncrBy(ctx, s.verdictsKey(strike.Type), string(verdictOf(report)), 1)
		for _, res := range report.Results {
			id := int(res.Outcome.CheckID)
			pipe.HIncrBy(ctx, s.checksKey(), checkField(id, "runs"), 1)
			if res.Outcome.Passed {
				pipe.HIncrBy(ctx, s.checksKey(), checkField(id, "passes"), 1)
			}
			if res.Outcome.TimedOut {
				pipe.HIncrBy(ctx, s.checksKey(), checkField(id, "timed_out"), 1)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("history record report: %w", err)
	}
	return nil
}

func verdictOf(r *contracts.Report) contracts.Verdict {
	switch r.Decision.Verdict {
	case contracts.VerdictApproved, contracts.VerdictConditionallyApproved:
		return r.Decision.Verdict
	default:
		return contracts.VerdictRejected
	}
}

func checkField(id int, name string) string {
	return fmt.Sprintf("%d:%s", id, name)
}

// RecordTrade appends a closed trade, keeping the newest MaxRecentReturns
func (s *RedisStore) RecordTrade(ctx context.Context, trade TradeRecord) error {
	if trade.ClosedAt.IsZero() {
		trade.ClosedAt = s.now()
	}
	data, err := json.Marshal(trade)
	if err != nil {
		return fmt.Errorf("history trade encode: %w", err)
	}

	key := s.tradesKey(trade.Symbol)
	rdb := s.client.Redis()
	if err := rdb.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("history record trade: %w", err)
	}
	if err := rdb.LTrim(ctx, key, -MaxRecentReturns, -1).Err(); err != nil {
		return fmt.Errorf("history trim trades: %w", err)
	}
	return nil
}

// SetRegime stores the current regime label for a symbol
func (s *RedisStore) SetRegime(ctx context.Context, symbol string, regime contracts.MarketRegime) error {
	if err := s.client.Redis().Set(ctx, s.regimeKey(symbol), string(regime), 0).Err(); err != nil {
		return fmt.Errorf("history set regime: %w", err)
	}
	return nil
}

// Stats reads every verdict hash and the per-check hash
func (s *RedisStore) Stats(ctx context.Context) (Stats, error) {
	rdb := s.client.Redis()
	out := Stats{
		ByType: make(map[contracts.StrikeType]VerdictCounts),
		Checks: make(map[contracts.CheckID]CheckStats),
	}

	for _, t := range contracts.AllStrikeTypes() {
		fields, err := rdb.HGetAll(ctx, s.verdictsKey(t)).Result()
		if err != nil {
			return Stats{}, fmt.Errorf("history verdicts %s: %w", t, err)
		}
		if c := parseVerdicts(fields); c.Total() > 0 {
			out.ByType[t] = c
		}
	}

	fields, err := rdb.HGetAll(ctx, s.checksKey()).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("history checks: %w", err)
	}
	for field, v := range fields {
		idStr, name, ok := strings.Cut(field, ":")
		if !ok {
			continue
		}
		id, err1 := strconv.Atoi(idStr)
		n, err2 := strconv.Atoi(v)
		if err1 != nil || err2 != nil {
			continue
		}
		st := out.Checks[contracts.CheckID(id)]
		switch name {
		case "runs":
			st.Runs = n
		case "passes":
			st.Passes = n
		case "timed_out":
			st.TimedOut = n
		}
		out.Checks[contracts.CheckID(id)] = st
	}
	return out, nil
}

func parseVerdicts(fields map[string]string) VerdictCounts {
	atoi := func(k string) int {
		n, _ := strconv.Atoi(fields[k])
		return n
	}
	return VerdictCounts{
		Approved:    atoi(string(contracts.VerdictApproved)),
		Conditional: atoi(string(contracts.VerdictConditionallyApproved)),
		Rejected:    atoi(string(contracts.VerdictRejected)),
	}
}
