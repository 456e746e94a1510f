package credits

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Each staff member owns three keys sharing a hash tag so they land in one cluster slot:
//
//	credits:{id}          hash  total, consumed, period
//	credits:{id}:log      list  id|kind|amount|period|at|reference
//	credits:{id}:receipts hash  consume entry id -> amount (current period only)
//
// Every mutation runs as a single Lua script.

var consumeScript = redis.NewScript(`
redis.call('HSETNX', KEYS[1], 'total', ARGV[1])
redis.call('HSETNX', KEYS[1], 'consumed', 0)
redis.call('HSETNX', KEYS[1], 'period', 0)
local total = tonumber(redis.call('HGET', KEYS[1], 'total'))
local consumed = tonumber(redis.call('HGET', KEYS[1], 'consumed'))
local period = tonumber(redis.call('HGET', KEYS[1], 'period'))
local amount = tonumber(ARGV[2])
if consumed + amount > total then
  return {0, total, consumed, period}
end
consumed = redis.call('HINCRBY', KEYS[1], 'consumed', amount)
redis.call('HSET', KEYS[3], ARGV[3], amount)
redis.call('RPUSH', KEYS[2], ARGV[3] .. '|consume|' .. amount .. '|' .. period .. '|' .. ARGV[4] .. '|' .. ARGV[5])
return {1, total, consumed, period}
`)

var refundScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'period')
if not cur or tonumber(cur) ~= tonumber(ARGV[2]) then
  return 0
end
local amount = redis.call('HGET', KEYS[3], ARGV[1])
if not amount then
  return 0
end
redis.call('HDEL', KEYS[3], ARGV[1])
local consumed = tonumber(redis.call('HGET', KEYS[1], 'consumed')) - tonumber(amount)
if consumed < 0 then
  consumed = 0
end
redis.call('HSET', KEYS[1], 'consumed', consumed)
redis.call('RPUSH', KEYS[2], ARGV[3] .. '|refund|' .. amount .. '|' .. cur .. '|' .. ARGV[4] .. '|' .. ARGV[1])
return 1
`)

var resetScript = redis.NewScript(`
redis.call('HSETNX', KEYS[1], 'period', 0)
local period = redis.call('HINCRBY', KEYS[1], 'period', 1)
redis.call('HSET', KEYS[1], 'total', ARGV[1])
redis.call('HSET', KEYS[1], 'consumed', 0)
redis.call('DEL', KEYS[3])
redis.call('RPUSH', KEYS[2], ARGV[2] .. '|reset|0|' .. period .. '|' .. ARGV[3] .. '|')
return {tonumber(ARGV[1]), 0, period}
`)

var balanceScript = redis.NewScript(`
redis.call('HSETNX', KEYS[1], 'total', ARGV[1])
redis.call('HSETNX', KEYS[1], 'consumed', 0)
redis.call('HSETNX', KEYS[1], 'period', 0)
local v = redis.call('HMGET', KEYS[1], 'total', 'consumed', 'period')
return {tonumber(v[1]), tonumber(v[2]), tonumber(v[3])}
`)

// Redis is a ledger shared by every API instance pointing at the same redis.
type Redis struct {
	client    redis.UniversalClient
	perPeriod int
	now       func() time.Time
}

// NewRedis builds a ledger on an existing client.
func NewRedis(client redis.UniversalClient, perPeriod int) *Redis {
	return &Redis{client: client, perPeriod: perPeriodOrDefault(perPeriod), now: time.Now}
}

func keys(staffID string) []string {
	base := "credits:{" + staffID + "}"
	return []string{base, base + ":log", base + ":receipts"}
}

func (r *Redis) stamp() string {
	return r.now().UTC().Format(time.RFC3339Nano)
}

// Consume runs the check-and-increment script.
func (r *Redis) Consume(ctx context.Context, staffID string, amount int, reference string) (Receipt, error) {
	if err := checkConsume(staffID, amount); err != nil {
		return Receipt{}, err
	}
	id := uuid.NewString()
	res, err := consumeScript.Run(ctx, r.client, keys(staffID),
		r.perPeriod, amount, id, r.stamp(), reference).Int64Slice()
	if err != nil {
		return Receipt{}, fmt.Errorf("consume credits: %w", err)
	}
	if len(res) != 4 {
		return Receipt{}, fmt.Errorf("consume credits: unexpected reply %v", res)
	}
	b := Balance{StaffID: staffID, Total: int(res[1]), Consumed: int(res[2]), Period: int(res[3])}
	if res[0] == 0 {
		return Receipt{}, &ExhaustedError{Balance: b, Requested: amount}
	}
	return Receipt{
		EntryID:   id,
		StaffID:   staffID,
		Amount:    amount,
		Period:    b.Period,
		Consumed:  b.Consumed,
		Remaining: b.Remaining(),
	}, nil
}

// Refund runs the refund script; unknown or stale receipts are ignored.
func (r *Redis) Refund(ctx context.Context, rc Receipt) error {
	if err := checkConsume(rc.StaffID, rc.Amount); err != nil {
		return err
	}
	err := refundScript.Run(ctx, r.client, keys(rc.StaffID),
		rc.EntryID, rc.Period, uuid.NewString(), r.stamp()).Err()
	if err != nil {
		return fmt.Errorf("refund credits: %w", err)
	}
	return nil
}

// Reset starts a new period.
func (r *Redis) Reset(ctx context.Context, staffID string) (Balance, error) {
	if err := checkConsume(staffID, 1); err != nil {
		return Balance{}, err
	}
	res, err := resetScript.Run(ctx, r.client, keys(staffID),
		r.perPeriod, uuid.NewString(), r.stamp()).Int64Slice()
	if err != nil {
		return Balance{}, fmt.Errorf("reset credits: %w", err)
	}
	if len(res) != 3 {
		return Balance{}, fmt.Errorf("reset credits: unexpected reply %v", res)
	}
	return Balance{StaffID: staffID, Total: int(res[0]), Consumed: int(res[1]), Period: int(res[2])}, nil
}

// Balance returns the current balance, creating the ledger if needed.
func (r *Redis) Balance(ctx context.Context, staffID string) (Balance, error) {
	if err := checkConsume(staffID, 1); err != nil {
		return Balance{}, err
	}
	res, err := balanceScript.Run(ctx, r.client, keys(staffID)[:1], r.perPeriod).Int64Slice()
	if err != nil {
		return Balance{}, fmt.Errorf("read credits: %w", err)
	}
	if len(res) != 3 {
		return Balance{}, fmt.Errorf("read credits: unexpected reply %v", res)
	}
	return Balance{StaffID: staffID, Total: int(res[0]), Consumed: int(res[1]), Period: int(res[2])}, nil
}

// History returns the audit log oldest first.
func (r *Redis) History(ctx context.Context, staffID string) ([]Entry, error) {
	raw, err := r.client.LRange(ctx, keys(staffID)[1], 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read credit log: %w", err)
	}
	out := make([]Entry, 0, len(raw))
	for _, line := range raw {
		e, err := parseEntry(staffID, line)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// parseEntry reads one log line; the reference is last so it may contain separators.
func parseEntry(staffID, line string) (Entry, error) {
	parts := strings.SplitN(line, "|", 6)
	if len(parts) != 6 {
		return Entry{}, fmt.Errorf("malformed credit log line %q", line)
	}
	amount, err := strconv.Atoi(parts[2])
	if err != nil {
		return Entry{}, fmt.Errorf("credit log amount: %w", err)
	}
	period, err := strconv.Atoi(parts[3])
	if err != nil {
		return Entry{}, fmt.Errorf("credit log period: %w", err)
	}
	at, err := time.Parse(time.RFC3339Nano, parts[4])
	if err != nil {
		return Entry{}, fmt.Errorf("credit log time: %w", err)
	}
	return Entry{
		ID:        parts[0],
		StaffID:   staffID,
		Kind:      EntryKind(parts[1]),
		Amount:    amount,
		Reference: parts[5],
		Period:    period,
		At:        at,
	}, nil
}
