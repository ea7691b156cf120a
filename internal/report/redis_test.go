package report

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/vnykmshr/threadsearch/internal/testutil"
	tserrors "github.com/vnykmshr/threadsearch/pkg/common/errors"
)

type fakeList struct {
	mu     sync.Mutex
	pushed map[string][]string
	err    error
}

func (f *fakeList) RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx, append([]interface{}{"rpush", key}, values...)...)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushed == nil {
		f.pushed = make(map[string][]string)
	}
	for _, v := range values {
		f.pushed[key] = append(f.pushed[key], string(v.([]byte)))
	}
	cmd.SetVal(int64(len(f.pushed[key])))
	return cmd
}

func TestRedisSinkPushesJSON(t *testing.T) {
	list := &fakeList{}
	sink, err := NewRedisSink(list, "threadsearch:matches")
	testutil.AssertNoError(t, err)

	testutil.AssertNoError(t, sink.Match(context.Background(), Match{RunID: "run-42", WorkerID: 1, File: "a.c", Line: 3, Text: "thread"}))
	testutil.AssertNoError(t, sink.Match(context.Background(), Match{File: "b.c", Line: 9}))

	got := list.pushed["threadsearch:matches"]
	testutil.AssertEqual(t, len(got), 2)

	var first Match
	testutil.AssertNoError(t, json.Unmarshal([]byte(got[0]), &first))
	testutil.AssertEqual(t, first, Match{RunID: "run-42", WorkerID: 1, File: "a.c", Line: 3, Text: "thread"})

	testutil.AssertEqual(t, got[1], `{"worker_id":0,"file":"b.c","line":9,"text":""}`)
}

func TestRedisSinkError(t *testing.T) {
	pushErr := errors.New("connection refused")
	sink, err := NewRedisSink(&fakeList{err: pushErr}, "k")
	testutil.AssertNoError(t, err)

	err = sink.Match(context.Background(), Match{File: "a.c"})
	testutil.AssertEqual(t, errors.Is(err, pushErr), true)
}

func TestNewRedisSinkValidation(t *testing.T) {
	_, err := NewRedisSink(nil, "k")
	testutil.AssertEqual(t, tserrors.IsValidationError(err), true)

	_, err = NewRedisSink(&fakeList{}, "")
	testutil.AssertEqual(t, tserrors.IsValidationError(err), true)
}
