package valkey

import (
	"context"
	"fmt"
	"sort"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/policyrag/internal/db"
)

// ReplaceGroup swaps the members of groupKey for items inside one MULTI/EXEC.
// In cluster mode groupKey and every item key must hash to the same slot.
func (s *Store) ReplaceGroup(ctx context.Context, groupKey string, items []db.HashSetItem) error {
	existing, err := s.GroupMembers(ctx, groupKey)
	if err != nil {
		return err
	}

	keep := make(map[string]bool, len(items))
	members := make([]string, 0, len(items))
	for _, it := range items {
		keep[it.Key] = true
		members = append(members, it.Key)
	}
	var stale []string
	for _, k := range existing {
		if !keep[k] {
			stale = append(stale, k)
		}
	}

	b := s.b()
	cmds := make(rueidis.Commands, 0, len(items)+5)
	cmds = append(cmds, b.Multi().Build())
	if len(stale) > 0 {
		cmds = append(cmds, b.Del().Key(stale...).Build())
	}
	cmds = append(cmds, b.Del().Key(groupKey).Build())
	for _, it := range items {
		cmds = append(cmds, hsetCmd(b, it.Key, it.Fields))
	}
	if len(members) > 0 {
		cmds = append(cmds, b.Sadd().Key(groupKey).Member(members...).Build())
	}
	cmds = append(cmds, b.Exec().Build())

	return checkExec(groupKey, s.client.DoMulti(ctx, cmds...))
}

// GroupMembers lists member keys in sorted order.
func (s *Store) GroupMembers(ctx context.Context, groupKey string) ([]string, error) {
	cmd := s.b().Smembers().Key(groupKey).Build()
	members, err := s.do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: db.OpSMembers, Key: groupKey, Err: err}
	}
	sort.Strings(members)
	return members, nil
}

// DeleteGroup removes the group and its members atomically.
func (s *Store) DeleteGroup(ctx context.Context, groupKey string) (int, error) {
	members, err := s.GroupMembers(ctx, groupKey)
	if err != nil {
		return 0, err
	}
	keys := append(members, groupKey)

	b := s.b()
	err = checkExec(groupKey, s.client.DoMulti(ctx,
		b.Multi().Build(),
		b.Del().Key(keys...).Build(),
		b.Exec().Build(),
	))
	if err != nil {
		return 0, err
	}
	return len(members), nil
}

// checkExec inspects the replies of a MULTI ... EXEC pipeline. Queueing errors
// and per-command errors inside the EXEC reply are both surfaced.
func checkExec(groupKey string, results []rueidis.RedisResult) error {
	if len(results) == 0 {
		return &db.Error{Op: db.OpExec, Key: groupKey, Err: fmt.Errorf("no replies")}
	}
	for i, res := range results[:len(results)-1] {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpExec, Key: groupKey, Err: fmt.Errorf("command %d: %w", i, err)}
		}
	}

	replies, err := results[len(results)-1].ToArray()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return &db.Error{Op: db.OpExec, Key: groupKey, Err: db.ErrTxAborted}
		}
		return &db.Error{Op: db.OpExec, Key: groupKey, Err: err}
	}
	for i := range replies {
		if err := replies[i].Error(); err != nil {
			return &db.Error{Op: db.OpExec, Key: groupKey, Err: fmt.Errorf("reply %d: %w", i, err)}
		}
	}
	return nil
}

func hsetCmd(b rueidis.Builder, key string, fields map[string]string) rueidis.Completed {
	cmd := b.Hset().Key(key).FieldValue()
	for k, v := range fields {
		cmd = cmd.FieldValue(k, v)
	}
	return cmd.Build()
}
