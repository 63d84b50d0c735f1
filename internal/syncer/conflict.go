package syncer

import (
	"time"

	"github.com/batman3101/equipment-sync/internal/errors"
)

// Strategy selects how Resolve combines a local and a remote record.
type Strategy string

const (
	// StrategyLocal keeps the local record unchanged.
	StrategyLocal Strategy = "local"
	// StrategyServer keeps the remote record unchanged.
	StrategyServer Strategy = "server"
	// StrategyMerge shallow-merges the two records. Local fields win,
	// except updated_at which takes the chronologically later value.
	StrategyMerge Strategy = "merge"
)

const updatedAtField = "updated_at"

// Resolve applies the given strategy to two versions of a record.
// Pure: neither input map is modified. An unknown strategy is an error
// rather than a silent default, since picking the wrong side loses data.
func Resolve(local, remote map[string]interface{}, strategy Strategy) (map[string]interface{}, error) {
	switch strategy {
	case StrategyLocal:
		return copyRecord(local), nil
	case StrategyServer:
		return copyRecord(remote), nil
	case StrategyMerge:
		return mergeRecords(local, remote), nil
	default:
		return nil, errors.New(errors.ErrConflictStrategy,
			"unknown conflict resolution strategy: "+string(strategy))
	}
}

func mergeRecords(local, remote map[string]interface{}) map[string]interface{} {
	out := copyRecord(remote)
	for k, v := range local {
		out[k] = v
	}
	if lv, lok := local[updatedAtField]; lok {
		if rv, rok := remote[updatedAtField]; rok {
			out[updatedAtField] = laterTimestamp(lv, rv)
		}
	}
	return out
}

func copyRecord(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// laterTimestamp picks the chronologically later of two updated_at
// values. Numeric values compare as epoch milliseconds; strings parse
// as RFC 3339 and fall back to lexicographic comparison, which is
// chronological for same-format timestamps.
func laterTimestamp(a, b interface{}) interface{} {
	if an, aok := toFloat(a); aok {
		if bn, bok := toFloat(b); bok {
			if bn > an {
				return b
			}
			return a
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		at, aerr := time.Parse(time.RFC3339, as)
		bt, berr := time.Parse(time.RFC3339, bs)
		if aerr == nil && berr == nil {
			if bt.After(at) {
				return b
			}
			return a
		}
		if bs > as {
			return b
		}
		return a
	}
	return a
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
